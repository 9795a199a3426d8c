package validate_test

import (
	"strings"
	"testing"

	"jobmate/aggregator-service/internal/validate"
)

type named struct {
	Name string `yaml:"name" validate:"required"`
}

type colored struct {
	Name  string `yaml:"name" validate:"required"`
	Color string `json:"color" validate:"omitempty,isred"`
}

func TestStruct_UsesTagNames(t *testing.T) {
	err := validate.Struct(named{})
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error %q should mention yaml field name", err)
	}
}

func TestRegisterString_CustomRule(t *testing.T) {
	validate.RegisterString("isred", func(s string) bool { return s == "red" }, "{0} must be red")

	if err := validate.Struct(colored{Name: "a", Color: "red"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := validate.Struct(colored{Name: "a", Color: "blue"})
	if err == nil || !strings.Contains(err.Error(), "color must be red") {
		t.Errorf("got %v, want custom message", err)
	}
}

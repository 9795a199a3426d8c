// Package validate holds the process-wide struct validator with english
// messages keyed by yaml/json field names.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Service bundles the validator and its translator.
type Service struct {
	Validator  *validator.Validate
	Translator ut.Translator
	mu         sync.Mutex
}

var (
	once sync.Once
	svc  *Service
)

// Get returns the singleton, building it on first use.
func Get() *Service {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"yaml", "json"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		svc = &Service{Validator: v, Translator: trans}
	})
	return svc
}

// RegisterString adds a custom rule for string fields. msg may reference the
// field name with {0}.
func RegisterString(tag string, fn func(string) bool, msg string) {
	s := Get()
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.Validator.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	_ = s.Validator.RegisterTranslation(tag, s.Translator,
		func(t ut.Translator) error { return t.Add(tag, msg, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			out, _ := t.T(tag, fe.Field())
			return out
		},
	)
}

// Struct validates v and flattens the failures into one readable error.
func Struct(v any) error {
	s := Get()
	err := s.Validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(s.Translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}

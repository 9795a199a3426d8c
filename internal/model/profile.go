package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"jobmate/aggregator-service/internal/validate"
)

// DefaultTimeWindowHours applies when a profile leaves the window unset.
const DefaultTimeWindowHours = 24

// ErrInvalidProfile wraps every profile construction failure.
var ErrInvalidProfile = errors.New("invalid search profile")

func init() {
	validate.RegisterString("exprange", func(s string) bool {
		_, _, err := ParseExperienceRange(s)
		return err == nil
	}, "{0} must be a range like 2-5 with min <= max")
}

// NewSearchProfile applies defaults and validates p. A malformed experience
// range is a configuration error and is reported, never defaulted.
func NewSearchProfile(p SearchProfile) (SearchProfile, error) {
	if p.TimeWindowHours == 0 {
		p.TimeWindowHours = DefaultTimeWindowHours
	}
	p.ExperienceRange = strings.TrimSpace(p.ExperienceRange)

	if err := validate.Struct(p); err != nil {
		return SearchProfile{}, fmt.Errorf("%w %q: %v", ErrInvalidProfile, p.Name, err)
	}

	p.TargetTitles = cloneStrings(p.TargetTitles)
	p.AdjacentTitles = cloneStrings(p.AdjacentTitles)
	p.MustHave = cloneStrings(p.MustHave)
	p.NiceToHave = cloneStrings(p.NiceToHave)
	p.Exclude = cloneStrings(p.Exclude)
	return p, nil
}

// ParseExperienceRange parses "min-max" into two non-negative integers with
// min <= max.
func ParseExperienceRange(s string) (lo, hi int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("experience range %q: want min-max", s)
	}
	lo, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("experience range %q: min: %w", s, err)
	}
	hi, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("experience range %q: max: %w", s, err)
	}
	if lo < 0 || hi < 0 || lo > hi {
		return 0, 0, fmt.Errorf("experience range %q: need 0 <= min <= max", s)
	}
	return lo, hi, nil
}

// MaxExperience returns the upper experience bound, if the profile has one.
func (p SearchProfile) MaxExperience() (int, bool) {
	if p.ExperienceRange == "" {
		return 0, false
	}
	_, hi, err := ParseExperienceRange(p.ExperienceRange)
	if err != nil {
		return 0, false
	}
	return hi, true
}

// WantsRemote reports whether the profile's location mode is "remote".
func (p SearchProfile) WantsRemote() bool {
	return strings.EqualFold(strings.TrimSpace(p.LocationMode), "remote")
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

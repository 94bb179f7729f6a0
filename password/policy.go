package password

import (
	"crypto/subtle"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Violation names one policy rule a candidate password failed.
type Violation string

const (
	ViolationTooShort  Violation = "too_short"
	ViolationNoUpper   Violation = "no_upper"
	ViolationNoLower   Violation = "no_lower"
	ViolationNoDigit   Violation = "no_digit"
	ViolationNoSpecial Violation = "no_special"
	ViolationMismatch  Violation = "mismatch"
)

const (
	defaultMinLength       = 8
	violationMessagePrefix = "password policy: "
)

var (
	// ErrPolicy is matched by every *PolicyError.
	ErrPolicy = errors.New("password does not satisfy policy")
)

// PolicyError lists the violated rules in a stable order.
type PolicyError struct {
	Violations []Violation
}

func (e *PolicyError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = string(v)
	}
	return violationMessagePrefix + strings.Join(parts, ",")
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPolicy
}

// Has reports whether v is among the violations.
func (e *PolicyError) Has(v Violation) bool {
	for _, x := range e.Violations {
		if x == v {
			return true
		}
	}
	return false
}

// Policy configures which rules apply. Length is counted in runes.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy requires eight runes and all four character classes.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      defaultMinLength,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Check validates a candidate password alone.
func (p Policy) Check(candidate string) error {
	var violations []Violation
	if utf8.RuneCountInString(candidate) < p.MinLength {
		violations = append(violations, ViolationTooShort)
	}

	var upper, lower, digit, special bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	if p.RequireUpper && !upper {
		violations = append(violations, ViolationNoUpper)
	}
	if p.RequireLower && !lower {
		violations = append(violations, ViolationNoLower)
	}
	if p.RequireDigit && !digit {
		violations = append(violations, ViolationNoDigit)
	}
	if p.RequireSpecial && !special {
		violations = append(violations, ViolationNoSpecial)
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

// CheckConfirmed validates candidate and requires it to equal confirm.
func (p Policy) CheckConfirmed(candidate, confirm string) error {
	err := p.Check(candidate)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(confirm)) == 1 {
		return err
	}

	var pe *PolicyError
	if errors.As(err, &pe) {
		pe.Violations = append(pe.Violations, ViolationMismatch)
		return pe
	}
	return &PolicyError{Violations: []Violation{ViolationMismatch}}
}

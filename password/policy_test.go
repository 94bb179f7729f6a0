package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyAcceptsCompliantPassword(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Check("Pass@123"))
	require.NoError(t, p.CheckConfirmed("Pass@123", "Pass@123"))
	require.NoError(t, p.Check("Über-sicher9"))
}

func TestDefaultPolicyRequiresSpecialCharacter(t *testing.T) {
	err := DefaultPolicy().CheckConfirmed("Passw0rd", "Passw0rd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPolicy))

	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []Violation{ViolationNoSpecial}, pe.Violations)
}

func TestDefaultPolicyViolations(t *testing.T) {
	cases := []struct {
		in   string
		want Violation
	}{
		{"Pa@1", ViolationTooShort},
		{"pass@1234", ViolationNoUpper},
		{"PASS@1234", ViolationNoLower},
		{"Pass@word", ViolationNoDigit},
		{"Password1", ViolationNoSpecial},
	}
	for _, tc := range cases {
		err := DefaultPolicy().Check(tc.in)
		var pe *PolicyError
		require.ErrorAs(t, err, &pe, tc.in)
		assert.True(t, pe.Has(tc.want), "%s: %v", tc.in, pe.Violations)
	}
}

func TestCheckConfirmedMismatch(t *testing.T) {
	err := DefaultPolicy().CheckConfirmed("Pass@123", "Pass@124")
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []Violation{ViolationMismatch}, pe.Violations)

	err = DefaultPolicy().CheckConfirmed("short", "other")
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Has(ViolationTooShort))
	assert.True(t, pe.Has(ViolationMismatch))
}

func TestPolicyErrorMessage(t *testing.T) {
	err := &PolicyError{Violations: []Violation{ViolationNoUpper, ViolationNoDigit}}
	assert.Equal(t, "password policy: no_upper,no_digit", err.Error())
}

func TestRelaxedPolicy(t *testing.T) {
	p := Policy{MinLength: 4}
	assert.NoError(t, p.Check("abcd"))
	assert.Error(t, p.Check("abc"))
}

package fleetAuth

import (
	"strings"

	"github.com/MrEthical07/fleetAuth/password"
)

// ValidEmail is the strict format check: one non-empty local part, an "@",
// and a domain containing a dot that is neither first nor last. No network
// lookup is made.
func ValidEmail(email string) bool {
	return validEmail(email, true)
}

// ValidLoginInput requires a non-empty password and a valid email.
func ValidLoginInput(email, password string) bool {
	return password != "" && ValidEmail(email)
}

// ValidOTPCode requires exactly OTPCodeLength ASCII digits.
func ValidOTPCode(code string) bool {
	if len(code) != OTPCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// ValidNewPassword applies the default policy and requires confirm to match.
func ValidNewPassword(newPassword, confirm string) bool {
	return password.DefaultPolicy().CheckConfirmed(newPassword, confirm) == nil
}

func validEmail(email string, requireDomainDot bool) bool {
	email = strings.TrimSpace(email)
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.IndexByte(email[:at], '@') >= 0 {
		return false
	}
	if !requireDomainDot {
		return true
	}
	domain := email[at+1:]
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && !strings.HasSuffix(domain, ".")
}

func passwordPolicy(cfg PasswordConfig) password.Policy {
	return password.Policy{
		MinLength:      cfg.MinLength,
		RequireUpper:   cfg.RequireUpper,
		RequireLower:   cfg.RequireLower,
		RequireDigit:   cfg.RequireDigit,
		RequireSpecial: cfg.RequireSpecial,
	}
}

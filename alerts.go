package fleetAuth

import (
	"errors"
	"fmt"
	"strings"
)

const (
	msgInvalidLogin     = "Please enter a valid email address and password."
	msgInvalidEmail     = "Please enter a valid email address."
	msgInvalidOTP       = "Please enter the 6-digit verification code."
	msgAccessDenied     = "This email is not authorized to use the app. Contact your fleet administrator."
	msgAuthFailed       = "Incorrect email or password."
	msgOTPInvalid       = "The verification code is invalid or has expired."
	msgProviderFallback = "The authentication service is unavailable. Please try again."
)

// alertFor maps an intent error to the alert shown to the user.
func alertFor(op string, err error, pw PasswordConfig) Alert {
	switch {
	case errors.Is(err, ErrValidation):
		return Alert{Kind: AlertValidation, Message: validationMessage(op, pw), Visible: true}
	case errors.Is(err, ErrAccessDenied):
		return Alert{Kind: AlertAccessDenied, Message: msgAccessDenied, Visible: true}
	case errors.Is(err, ErrAuthenticationFailed):
		return Alert{Kind: AlertAuthenticationFailed, Message: msgAuthFailed, Visible: true}
	case errors.Is(err, ErrOTPInvalid):
		return Alert{Kind: AlertOTPInvalid, Message: msgOTPInvalid, Visible: true}
	default:
		return Alert{Kind: AlertProviderError, Message: providerMessage(err), Visible: true}
	}
}

func validationMessage(op string, pw PasswordConfig) string {
	switch op {
	case opVerifyOTP:
		return msgInvalidOTP
	case opForgotPassword:
		return msgInvalidEmail
	case opChangePassword:
		return passwordRequirements(pw)
	default:
		return msgInvalidLogin
	}
}

func passwordRequirements(pw PasswordConfig) string {
	var classes []string
	if pw.RequireUpper {
		classes = append(classes, "an upper-case letter")
	}
	if pw.RequireLower {
		classes = append(classes, "a lower-case letter")
	}
	if pw.RequireDigit {
		classes = append(classes, "a digit")
	}
	if pw.RequireSpecial {
		classes = append(classes, "a special character")
	}

	msg := fmt.Sprintf("Password must be at least %d characters", pw.MinLength)
	if len(classes) > 0 {
		msg += " and include " + strings.Join(classes, ", ")
	}
	return msg + ". Both entries must match."
}

// providerMessage keeps the provider's own text after the sentinel prefix.
func providerMessage(err error) string {
	if err == nil {
		return msgProviderFallback
	}
	msg := strings.TrimPrefix(err.Error(), ErrProvider.Error()+": ")
	if msg == "" || msg == ErrProvider.Error() {
		return msgProviderFallback
	}
	return msg
}

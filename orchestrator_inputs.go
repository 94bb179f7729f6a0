package fleetAuth

import (
	"errors"
	"fmt"
)

var errDigitIndex = errors.New("otp digit index out of range")

// SetEmail updates the email input buffer.
func (o *Orchestrator) SetEmail(v string) {
	o.updateInputs(func(in *Inputs) { in.Email = v })
}

func (o *Orchestrator) SetPassword(v string) {
	o.updateInputs(func(in *Inputs) { in.Password = v })
}

func (o *Orchestrator) SetNewPassword(v string) {
	o.updateInputs(func(in *Inputs) { in.NewPassword = v })
}

func (o *Orchestrator) SetConfirmPassword(v string) {
	o.updateInputs(func(in *Inputs) { in.ConfirmPassword = v })
}

// SetOTPDigit sets digit i of the code buffer. d must be empty or one ASCII
// digit; anything else is ErrValidation.
func (o *Orchestrator) SetOTPDigit(i int, d string) error {
	if i < 0 || i >= OTPCodeLength {
		return fmt.Errorf("%w: %w: %d", ErrValidation, errDigitIndex, i)
	}
	if d != "" && (len(d) != 1 || d[0] < '0' || d[0] > '9') {
		return fmt.Errorf("%w: otp digit must be 0-9", ErrValidation)
	}
	o.updateInputs(func(in *Inputs) { in.OTPDigits[i] = d })
	return nil
}

// ClearOTPDigits empties the code buffer.
func (o *Orchestrator) ClearOTPDigits() {
	o.updateInputs(func(in *Inputs) { in.OTPDigits = [OTPCodeLength]string{} })
}

// DismissAlert hides the current alert.
func (o *Orchestrator) DismissAlert() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.alert.Visible {
		return
	}
	o.alert = Alert{}
	o.notifyLocked()
}

func (o *Orchestrator) updateInputs(fn func(*Inputs)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.inputs)
	o.notifyLocked()
}

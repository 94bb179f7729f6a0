package fleetAuth

import (
	"context"
	"strings"

	"github.com/MrEthical07/fleetAuth/internal/flows"
)

const (
	opLogin          = "login"
	opDispatchOTP    = "dispatch_otp"
	opVerifyOTP      = "verify_otp"
	opResendOTP      = "resend_otp"
	opChangePassword = "change_password"
	opForgotPassword = "forgot_password"
	opSignOut        = "sign_out"
	opRestore        = "restore"
)

// Login validates input, checks the allow-list and signs in with email and
// password. On success the stage is AwaitingOTP, the pending-OTP pair is
// persisted and a one-time code is sent. A failed send keeps AwaitingOTP with
// a provider alert so the user can resend.
func (o *Orchestrator) Login(ctx context.Context, email, password string) error {
	in, err := o.begin(ctx, opLogin, []Stage{StageUnauthenticated, StageSignedOut}, func() {
		o.inputs.Email = email
		o.inputs.Password = password
		o.stage = StageCredentialsSubmitted
	})
	if err != nil {
		return err
	}

	out := flows.RunLogin(in.ctx, email, password, o.deps)
	if err := o.finish(in, out, in.prev); err != nil {
		return err
	}
	return o.dispatchOTP(in)
}

// dispatchOTP sends a code to the current flow email. A completion is applied
// only if no sign-out and no newer dispatch happened meanwhile.
func (o *Orchestrator) dispatchOTP(in intent) error {
	o.mu.Lock()
	if in.epoch != o.epoch {
		o.discardLocked(in)
		o.mu.Unlock()
		return ErrSuperseded
	}
	o.otpSeq++
	seq := o.otpSeq
	email := o.flow.Email
	o.mu.Unlock()

	out := flows.RunDispatchOTP(in.ctx, email, o.deps)

	o.mu.Lock()
	defer o.mu.Unlock()
	if in.epoch != o.epoch || seq != o.otpSeq {
		o.discardLocked(in)
		return ErrSuperseded
	}
	defer o.notifyLocked()

	o.busy = false
	if out.Err != nil {
		o.raiseLocked(opDispatchOTP, out.Err)
		return out.Err
	}
	if out.Effects.Has(flows.EffectStartCooldown) {
		o.startCooldownLocked()
	}
	return nil
}

// VerifyOTP submits a one-time code. An empty code submits the digit buffer.
func (o *Orchestrator) VerifyOTP(ctx context.Context, code string) error {
	in, err := o.begin(ctx, opVerifyOTP, []Stage{StageAwaitingOTP}, func() {
		if code == "" {
			code = o.inputs.OTPCode()
			return
		}
		o.inputs.OTPDigits = splitDigits(code)
	})
	if err != nil {
		return err
	}

	out := flows.RunVerifyOTP(in.ctx, code, in.flow, o.deps)
	return o.finish(in, out, in.prev)
}

// ResendOTP sends a new code once the cooldown has reached zero. While the
// cooldown runs it does nothing and returns nil.
func (o *Orchestrator) ResendOTP(ctx context.Context) error {
	o.mu.Lock()
	if err := o.gateLocked([]Stage{StageAwaitingOTP}); err != nil {
		o.mu.Unlock()
		return err
	}
	if o.cooldownSeconds > 0 {
		o.metrics.Inc(MetricOTPResendSuppressed)
		o.mu.Unlock()
		return nil
	}
	in := o.captureLocked(ctx, opResendOTP)
	o.busy = true
	o.alert = Alert{}
	o.notifyLocked()
	o.mu.Unlock()

	return o.dispatchOTP(in)
}

// ChangePassword sets a new password after OTP verification. In the reset
// branch success signs out and returns to Unauthenticated with a notice; in
// the onboarding branch it records first login and authenticates.
func (o *Orchestrator) ChangePassword(ctx context.Context, newPassword, confirm string) error {
	in, err := o.begin(ctx, opChangePassword, []Stage{StagePasswordChangeRequired}, func() {
		o.inputs.NewPassword = newPassword
		o.inputs.ConfirmPassword = confirm
	})
	if err != nil {
		return err
	}

	out := flows.RunChangePassword(in.ctx, newPassword, confirm, flows.Branch(in.branch), in.flow, o.deps)
	return o.finish(in, out, in.prev)
}

// ForgotPassword starts the reset flow: a one-time code goes to email and the
// stage becomes AwaitingOTP with the reset branch marked.
func (o *Orchestrator) ForgotPassword(ctx context.Context, email string) error {
	in, err := o.begin(ctx, opForgotPassword, []Stage{StageUnauthenticated, StageSignedOut}, func() {
		o.inputs.Email = email
		o.stage = StagePasswordResetRequested
	})
	if err != nil {
		return err
	}

	out := flows.RunForgotPassword(in.ctx, email, o.deps)
	return o.finish(in, out, StageUnauthenticated)
}

// SignOut is accepted in any stage, including while another intent runs; that
// intent's result is discarded. Provider sign-out is best effort and SignOut
// always returns nil.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.epoch++
	in := o.captureLocked(ctx, opSignOut)
	o.busy = true
	o.alert = Alert{}
	o.stopCooldownLocked()
	o.notifyLocked()
	o.mu.Unlock()

	out := flows.RunSignOut(in.ctx, in.flow.UserID, o.deps)

	o.mu.Lock()
	defer o.mu.Unlock()
	if in.epoch != o.epoch {
		o.discardLocked(in)
		return nil
	}
	o.applyLocked(in, out)
	o.busy = false
	o.notifyLocked()
	return nil
}

func splitDigits(code string) [OTPCodeLength]string {
	var digits [OTPCodeLength]string
	code = strings.TrimSpace(code)
	for i := 0; i < len(code) && i < OTPCodeLength; i++ {
		digits[i] = code[i : i+1]
	}
	return digits
}

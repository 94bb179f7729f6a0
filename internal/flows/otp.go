package flows

import "context"

// RunDispatchOTP sends a one-time code to email. Success asks the caller to
// (re)start the resend cooldown.
func RunDispatchOTP(ctx context.Context, email string, deps Deps) Outcome {
	deps.withDefaults()
	if deps.SendOneTimeCode == nil {
		return failed(deps.Errors.NotReady)
	}
	if email == "" {
		return failed(deps.Errors.Validation)
	}

	if err := deps.SendOneTimeCode(ctx, email); err != nil {
		deps.MetricInc(deps.Metrics.OTPSendFailure)
		deps.MetricInc(deps.Metrics.ProviderFailure)
		deps.EmitAudit(ctx, deps.Events.OTPSent, false, "", err, emailMeta(email))
		return failed(providerError(err, nil, nil, deps.Errors.Provider))
	}

	deps.MetricInc(deps.Metrics.OTPSent)
	deps.EmitAudit(ctx, deps.Events.OTPSent, true, "", nil, emailMeta(email))
	return Outcome{
		Stage:   StageAwaitingOTP,
		Effects: EffectStartCooldown,
	}
}

// RunVerifyOTP verifies code for fc.Email and picks the next stage: the reset
// branch wins over onboarding, and both keep pending-OTP persisted.
func RunVerifyOTP(ctx context.Context, code string, fc FlowContext, deps Deps) Outcome {
	deps.withDefaults()
	if deps.ValidOTPCode == nil || deps.VerifyOneTimeCode == nil {
		return failed(deps.Errors.NotReady)
	}
	if !deps.ValidOTPCode(code) {
		deps.MetricInc(deps.Metrics.ValidationFailure)
		return failed(deps.Errors.Validation)
	}
	if fc.Email == "" {
		return failed(deps.Errors.Validation)
	}

	if err := deps.VerifyOneTimeCode(ctx, fc.Email, code); err != nil {
		classified := providerError(err, deps.Errors.ProviderInvalidCode, deps.Errors.OTPInvalid, deps.Errors.Provider)
		deps.MetricInc(deps.Metrics.OTPVerifyFailure)
		if classified != deps.Errors.OTPInvalid {
			deps.MetricInc(deps.Metrics.ProviderFailure)
		}
		deps.EmitAudit(ctx, deps.Events.OTPFailure, false, fc.UserID, classified, emailMeta(fc.Email))
		return failed(classified)
	}

	deps.MetricInc(deps.Metrics.OTPVerifySuccess)
	deps.EmitAudit(ctx, deps.Events.OTPVerified, true, fc.UserID, nil, func() map[string]string {
		return map[string]string{
			"email":       NormalizeEmail(fc.Email),
			"reset_flow":  boolString(fc.ResetFlow),
			"first_login": boolString(fc.FirstLogin),
		}
	})

	switch {
	case fc.ResetFlow:
		return Outcome{
			Stage:   StagePasswordChangeRequired,
			Branch:  BranchReset,
			Effects: EffectStopCooldown,
			Flow:    fc,
		}
	case fc.FirstLogin:
		return Outcome{
			Stage:   StagePasswordChangeRequired,
			Branch:  BranchOnboarding,
			Effects: EffectStopCooldown,
			Flow:    fc,
		}
	default:
		return Outcome{
			Stage:   StageAuthenticated,
			Effects: EffectClearAuthState | EffectStopCooldown | EffectAuthenticate | EffectClearCredentials,
			Flow:    fc,
		}
	}
}

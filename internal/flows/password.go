package flows

import (
	"context"
	"fmt"
)

// PasswordResetNotice is shown after a successful reset.
const PasswordResetNotice = "Your password has been updated. Please sign in with your new password."

// RunChangePassword enforces the new-password policy and updates the password
// with the provider. The reset branch ends signed out; onboarding ends
// authenticated.
func RunChangePassword(ctx context.Context, newPassword, confirm string, branch Branch, fc FlowContext, deps Deps) Outcome {
	deps.withDefaults()
	if deps.CheckNewPassword == nil || deps.UpdatePassword == nil {
		return failed(deps.Errors.NotReady)
	}
	if branch != BranchReset && branch != BranchOnboarding {
		return failed(deps.Errors.Validation)
	}
	if err := deps.CheckNewPassword(newPassword, confirm); err != nil {
		deps.MetricInc(deps.Metrics.ValidationFailure)
		return failed(fmt.Errorf("%w: %v", deps.Errors.Validation, err))
	}

	if err := deps.UpdatePassword(ctx, newPassword); err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.MetricInc(deps.Metrics.ProviderFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChangeFailure, false, fc.UserID, err, emailMeta(fc.Email))
		return failed(providerError(err, nil, nil, deps.Errors.Provider))
	}
	newPassword, confirm = "", ""

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChanged, true, fc.UserID, nil, func() map[string]string {
		return map[string]string{
			"email":  NormalizeEmail(fc.Email),
			"branch": branchString(branch),
		}
	})

	if branch == BranchReset {
		if deps.SignOut != nil {
			if err := deps.SignOut(ctx); err != nil {
				deps.Warn("fleetauth: provider sign-out after reset failed", err)
			}
		}
		return Outcome{
			Stage:   StageUnauthenticated,
			Effects: EffectClearAuthState | EffectStopCooldown | EffectDeauthenticate | EffectClearCredentials,
			Notice:  PasswordResetNotice,
		}
	}

	return Outcome{
		Stage:   StageAuthenticated,
		Effects: EffectRecordFirstLogin | EffectClearAuthState | EffectStopCooldown | EffectAuthenticate | EffectClearCredentials,
		Flow:    fc,
	}
}

// RunForgotPassword starts the reset branch: it checks the email and the
// allow-list, dispatches a code, and asks the caller to persist the reset
// record and pending-OTP pair.
func RunForgotPassword(ctx context.Context, email string, deps Deps) Outcome {
	deps.withDefaults()
	if deps.ValidEmail == nil || deps.IsEmailAuthorized == nil || deps.SendOneTimeCode == nil {
		return failed(deps.Errors.NotReady)
	}

	if !deps.ValidEmail(email) {
		deps.MetricInc(deps.Metrics.ValidationFailure)
		return failed(deps.Errors.Validation)
	}
	normalized := NormalizeEmail(email)

	authorized, err := deps.IsEmailAuthorized(ctx, normalized)
	if err != nil {
		deps.MetricInc(deps.Metrics.ProviderFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, false, "", err, reasonMeta(email, "allow_list_unavailable"))
		return failed(providerError(err, nil, nil, deps.Errors.Provider))
	}
	if !authorized {
		deps.MetricInc(deps.Metrics.AccessDenied)
		deps.EmitAudit(ctx, deps.Events.AccessDenied, false, "", deps.Errors.AccessDenied, reasonMeta(email, "password_reset"))
		return failed(deps.Errors.AccessDenied)
	}

	if err := deps.SendOneTimeCode(ctx, normalized); err != nil {
		deps.MetricInc(deps.Metrics.OTPSendFailure)
		deps.MetricInc(deps.Metrics.ProviderFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, false, "", err, reasonMeta(email, "otp_dispatch_failed"))
		return failed(providerError(err, nil, nil, deps.Errors.Provider))
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.MetricInc(deps.Metrics.OTPSent)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, true, "", nil, emailMeta(email))

	return Outcome{
		Stage:   StageAwaitingOTP,
		Branch:  BranchReset,
		Effects: EffectPersistResetFlow | EffectPersistPendingOTP | EffectStartCooldown,
		Flow: FlowContext{
			Email:     normalized,
			ResetFlow: true,
		},
	}
}

func branchString(b Branch) string {
	switch b {
	case BranchOnboarding:
		return "onboarding"
	case BranchReset:
		return "reset"
	default:
		return "none"
	}
}

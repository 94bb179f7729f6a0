package flows

import (
	"context"
	"errors"
	"strings"
)

// RunLogin checks input, the allow-list and the password, in that order.
// On success the caller enters AwaitingOTP, persists the pending-OTP pair and
// then runs RunDispatchOTP. Second factor is mandatory for every sign-in.
func RunLogin(ctx context.Context, email, password string, deps Deps) Outcome {
	deps.withDefaults()
	if deps.ValidLoginInput == nil ||
		deps.IsEmailAuthorized == nil ||
		deps.SignInWithPassword == nil ||
		deps.FirstLoginCompleted == nil {
		return failed(deps.Errors.NotReady)
	}

	email = strings.TrimSpace(email)
	if !deps.ValidLoginInput(email, password) {
		deps.MetricInc(deps.Metrics.ValidationFailure)
		return failed(deps.Errors.Validation)
	}

	authorized, err := deps.IsEmailAuthorized(ctx, NormalizeEmail(email))
	if err != nil {
		deps.MetricInc(deps.Metrics.ProviderFailure)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", err, reasonMeta(email, "allow_list_unavailable"))
		return failed(providerError(err, nil, nil, deps.Errors.Provider))
	}
	if !authorized {
		deps.MetricInc(deps.Metrics.AccessDenied)
		deps.EmitAudit(ctx, deps.Events.AccessDenied, false, "", deps.Errors.AccessDenied, emailMeta(email))
		return failed(deps.Errors.AccessDenied)
	}

	sess, err := deps.SignInWithPassword(ctx, email, password)
	password = ""
	if err != nil {
		classified := providerError(err, deps.Errors.ProviderInvalidCredentials, deps.Errors.AuthenticationFailed, deps.Errors.Provider)
		if !errors.Is(classified, deps.Errors.AuthenticationFailed) {
			deps.MetricInc(deps.Metrics.ProviderFailure)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", classified, reasonMeta(email, "sign_in_rejected"))
		return failed(classified)
	}
	if sess.UserID == "" {
		err := errors.New("provider session has no user id")
		deps.MetricInc(deps.Metrics.ProviderFailure)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", err, reasonMeta(email, "missing_user_id"))
		return failed(providerError(err, nil, nil, deps.Errors.Provider))
	}

	completed, err := deps.FirstLoginCompleted(ctx, sess.UserID)
	if err != nil {
		// Unreadable flag routes the user through onboarding.
		deps.Warn("fleetauth: first-login flag read failed", err)
		completed = false
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, sess.UserID, nil, func() map[string]string {
		return map[string]string{
			"email":       NormalizeEmail(email),
			"first_login": boolString(!completed),
		}
	})

	return Outcome{
		Stage:   StageAwaitingOTP,
		Branch:  BranchNone,
		Effects: EffectPersistPendingOTP | EffectClearResetFlow | EffectDispatchOTP,
		Flow: FlowContext{
			Email:      email,
			UserID:     sess.UserID,
			FirstLogin: !completed,
			ResetFlow:  false,
		},
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

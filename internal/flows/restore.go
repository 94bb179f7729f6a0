package flows

import "context"

const (
	RestoreReasonReinstall     = "reinstall"
	RestoreReasonNoSession     = "no_session"
	RestoreReasonFirstLaunch   = "first_launch"
	RestoreReasonCorruptState  = "corrupt_pending_otp"
	RestoreReasonResumeOTP     = "resume_otp"
	RestoreReasonAuthenticated = "authenticated"
)

// RunRestore decides the startup stage from lifecycle markers, the provider
// session and persisted flags. It never returns an error in Outcome.Err:
// unreadable state is treated as absent and corrupt state forces sign-out.
func RunRestore(ctx context.Context, deps Deps) Outcome {
	deps.withDefaults()
	if deps.InstalledVersion == nil ||
		deps.CurrentSession == nil ||
		deps.PreviouslyLaunched == nil ||
		deps.PendingOTP == nil {
		return failed(deps.Errors.NotReady)
	}

	version, hasVersion, err := deps.InstalledVersion(ctx)
	if err != nil {
		deps.Warn("fleetauth: installed version read failed", err)
		hasVersion = false
	}
	if hasVersion && version != deps.AppVersion {
		deps.MetricInc(deps.Metrics.RestoreReinstall)
		return invalidate(ctx, RestoreReasonReinstall, "", nil, deps)
	}

	sess, err := deps.CurrentSession(ctx)
	if err != nil {
		deps.Warn("fleetauth: session lookup failed", err)
		sess = nil
	}
	if sess == nil {
		return Outcome{
			Stage:   StageUnauthenticated,
			Effects: EffectWriteLifecycleMarkers,
			Reason:  RestoreReasonNoSession,
		}
	}

	launched, err := deps.PreviouslyLaunched(ctx)
	if err != nil {
		deps.Warn("fleetauth: launch marker read failed", err)
		launched = false
	}
	if !launched {
		deps.MetricInc(deps.Metrics.RestoreFirstLaunch)
		return invalidate(ctx, RestoreReasonFirstLaunch, sess.UserID, nil, deps)
	}

	pending, err := deps.PendingOTP(ctx)
	if err != nil {
		deps.Warn("fleetauth: pending otp read failed", err)
		deps.MetricInc(deps.Metrics.RestoreCorruptState)
		return invalidate(ctx, RestoreReasonCorruptState, sess.UserID, deps.Errors.CorruptLocalState, deps)
	}

	if pending.Pending {
		if pending.Email == "" {
			deps.MetricInc(deps.Metrics.RestoreCorruptState)
			return invalidate(ctx, RestoreReasonCorruptState, sess.UserID, deps.Errors.CorruptLocalState, deps)
		}
		return resume(ctx, sess, pending.Email, deps)
	}

	deps.MetricInc(deps.Metrics.RestoreAuthenticated)
	deps.EmitAudit(ctx, deps.Events.SessionRestored, true, sess.UserID, nil, func() map[string]string {
		return map[string]string{"reason": RestoreReasonAuthenticated}
	})
	return Outcome{
		Stage:   StageAuthenticated,
		Effects: EffectAuthenticate | EffectWriteLifecycleMarkers,
		Flow:    FlowContext{Email: sess.Email, UserID: sess.UserID},
		Reason:  RestoreReasonAuthenticated,
	}
}

func resume(ctx context.Context, sess *SessionRecord, email string, deps Deps) Outcome {
	fc := FlowContext{Email: email, UserID: sess.UserID}

	if deps.ResetFlowActive != nil {
		active, err := deps.ResetFlowActive(ctx)
		if err != nil {
			deps.Warn("fleetauth: reset flow read failed", err)
		}
		fc.ResetFlow = active && err == nil
	}
	if !fc.ResetFlow && deps.FirstLoginCompleted != nil && sess.UserID != "" {
		completed, err := deps.FirstLoginCompleted(ctx, sess.UserID)
		if err != nil {
			deps.Warn("fleetauth: first-login flag read failed", err)
		}
		fc.FirstLogin = !completed
	}

	branch := BranchNone
	if fc.ResetFlow {
		branch = BranchReset
	}

	deps.MetricInc(deps.Metrics.RestoreResumed)
	deps.EmitAudit(ctx, deps.Events.SessionRestored, true, sess.UserID, nil, func() map[string]string {
		return map[string]string{
			"reason": RestoreReasonResumeOTP,
			"email":  NormalizeEmail(email),
		}
	})
	return Outcome{
		Stage:   StageAwaitingOTP,
		Branch:  branch,
		Effects: EffectWriteLifecycleMarkers,
		Flow:    fc,
		Reason:  RestoreReasonResumeOTP,
	}
}

// invalidate forces sign-out. cause, when set, is recorded on the audit event
// and never returned.
func invalidate(ctx context.Context, reason, userID string, cause error, deps Deps) Outcome {
	if deps.SignOut != nil {
		if err := deps.SignOut(ctx); err != nil {
			deps.Warn("fleetauth: forced sign-out failed", err)
		}
	}
	deps.EmitAudit(ctx, deps.Events.SessionInvalidated, true, userID, cause, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return Outcome{
		Stage:   StageUnauthenticated,
		Effects: EffectClearAuthState | EffectStopCooldown | EffectDeauthenticate | EffectClearCredentials | EffectWriteLifecycleMarkers,
		Reason:  reason,
	}
}

package flows

import "context"

// RunSignOut never fails. Provider sign-out is best effort.
func RunSignOut(ctx context.Context, userID string, deps Deps) Outcome {
	deps.withDefaults()
	if deps.SignOut != nil {
		if err := deps.SignOut(ctx); err != nil {
			deps.Warn("fleetauth: provider sign-out failed", err)
		}
	}
	deps.MetricInc(deps.Metrics.SignOut)
	deps.EmitAudit(ctx, deps.Events.SignOut, true, userID, nil, nil)

	return Outcome{
		Stage:   StageSignedOut,
		Effects: EffectClearAuthState | EffectStopCooldown | EffectDeauthenticate | EffectClearCredentials,
	}
}

package fleetAuth

import (
	"context"

	"github.com/MrEthical07/fleetAuth/internal/flows"
)

// InitializeAuthState restores the startup stage from lifecycle markers, the
// provider session and persisted flags. It runs once; later calls return nil.
// Until it completes every other intent except SignOut fails with ErrNotReady.
//
// A reinstall or first launch with a live session forces sign-out, as does a
// corrupt pending-OTP record. None of these are returned as errors.
func (o *Orchestrator) InitializeAuthState(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.ready || o.restoring {
		o.mu.Unlock()
		return nil
	}
	o.restoring = true
	o.busy = true
	in := o.captureLocked(ctx, opRestore)
	o.notifyLocked()
	o.mu.Unlock()

	out := flows.RunRestore(in.ctx, o.deps)

	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.notifyLocked()
	o.restoring = false

	if in.epoch != o.epoch {
		// A sign-out already settled the auth state. The lifecycle markers
		// still belong to this launch.
		o.discardLocked(in)
		if !o.closed && out.Err == nil && out.Effects.Has(flows.EffectWriteLifecycleMarkers) {
			o.writeLifecycleLocked(in)
		}
		o.ready = !o.closed
		return nil
	}
	if out.Err != nil {
		o.busy = false
		return out.Err
	}

	o.applyLocked(in, out)
	o.ready = true
	o.busy = false
	o.logger.Info().
		Str("flow_id", FlowIDFromContext(in.ctx)).
		Str("reason", out.Reason).
		Str("stage", o.stage.String()).
		Msg("auth state restored")
	return nil
}

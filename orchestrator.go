package fleetAuth

import (
	"context"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/fleetAuth/internal/audit"
	"github.com/MrEthical07/fleetAuth/internal/flows"
	"github.com/MrEthical07/fleetAuth/internal/stores"
	"github.com/MrEthical07/fleetAuth/password"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator owns the authentication state machine. All methods are safe
// for concurrent use. Intents block until their provider calls complete; a
// second intent while one is running fails with ErrBusy. SignOut and Close
// supersede any in-flight intent, whose result is then discarded.
type Orchestrator struct {
	config   Config
	provider IdentityProvider
	flags    *stores.FlowState
	session  SessionState
	logger   zerolog.Logger
	metrics  *Metrics
	audit    *internalaudit.Dispatcher
	policy   password.Policy
	deps     flows.Deps

	newTicker func(time.Duration) ticker
	newFlowID func() string

	mu        sync.Mutex
	stage     Stage
	branch    Branch
	flow      flows.FlowContext
	inputs    Inputs
	alert     Alert
	busy      bool
	ready     bool
	restoring bool
	closed    bool
	epoch     uint64
	otpSeq    uint64

	cooldownSeconds int
	cooldownGen     uint64
	cooldownStop    chan struct{}
	cooldownWG      sync.WaitGroup

	subs    map[uint64]chan State
	nextSub uint64
}

// intent is the captured context of one running operation.
type intent struct {
	op     string
	epoch  uint64
	prev   Stage
	branch Branch
	flow   flows.FlowContext
	ctx    context.Context
}

func (o *Orchestrator) withFlowID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if FlowIDFromContext(ctx) != "" {
		return ctx
	}
	return WithFlowID(ctx, o.newFlowID())
}

func newFlowID() string {
	return uuid.NewString()
}

// gateLocked rejects intents that cannot start now.
func (o *Orchestrator) gateLocked(allowed []Stage) error {
	if o.closed {
		return ErrClosed
	}
	if !o.ready {
		return ErrNotReady
	}
	if o.busy {
		o.metrics.Inc(MetricBusyRejected)
		return ErrBusy
	}
	for _, s := range allowed {
		if s == o.stage {
			return nil
		}
	}
	return ErrInvalidTransition
}

// begin gates an intent, marks the orchestrator busy and runs prepare under
// the lock so interim stage and input changes publish atomically.
func (o *Orchestrator) begin(ctx context.Context, op string, allowed []Stage, prepare func()) (intent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.gateLocked(allowed); err != nil {
		o.logger.Debug().Str("op", op).Str("stage", o.stage.String()).Err(err).Msg("intent rejected")
		return intent{}, err
	}

	in := o.captureLocked(ctx, op)
	o.busy = true
	o.alert = Alert{}
	if prepare != nil {
		prepare()
	}
	o.notifyLocked()
	return in, nil
}

func (o *Orchestrator) captureLocked(ctx context.Context, op string) intent {
	return intent{
		op:     op,
		epoch:  o.epoch,
		prev:   o.stage,
		branch: o.branch,
		flow:   o.flow,
		ctx:    o.withFlowID(ctx),
	}
}

// finish applies out if in is still current. On failure the stage returns to
// failStage and the classified error raises an alert.
func (o *Orchestrator) finish(in intent, out flows.Outcome, failStage Stage) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if in.epoch != o.epoch {
		o.discardLocked(in)
		return ErrSuperseded
	}
	defer o.notifyLocked()

	if out.Err != nil {
		o.stage = failStage
		o.busy = false
		o.raiseLocked(in.op, out.Err)
		o.logger.Debug().
			Str("op", in.op).
			Str("flow_id", FlowIDFromContext(in.ctx)).
			Str("stage", o.stage.String()).
			Err(out.Err).
			Msg("intent failed")
		return out.Err
	}

	o.applyLocked(in, out)
	if !out.Effects.Has(flows.EffectDispatchOTP) {
		o.busy = false
	}
	return nil
}

func (o *Orchestrator) discardLocked(in intent) {
	o.metrics.Inc(MetricStaleCompletionDiscarded)
	o.logger.Warn().
		Str("op", in.op).
		Str("flow_id", FlowIDFromContext(in.ctx)).
		Msg("discarding superseded completion")
}

// applyLocked moves to out's stage and performs its effects in order. Store
// writes use a context detached from the caller's cancellation; failures are
// logged and counted, never surfaced.
func (o *Orchestrator) applyLocked(in intent, out flows.Outcome) {
	ctx := context.WithoutCancel(in.ctx)
	from := o.stage

	o.stage = Stage(out.Stage)
	o.branch = Branch(out.Branch)
	o.flow = out.Flow
	if o.stage == StageAwaitingOTP && o.flow.Email != "" {
		o.inputs.Email = o.flow.Email
	}

	e := out.Effects
	if e.Has(flows.EffectPersistResetFlow) {
		o.storeWrite(in, "set_reset_flow", o.flags.SetResetFlow(ctx, o.flow.Email))
	}
	if e.Has(flows.EffectPersistPendingOTP) {
		o.storeWrite(in, "set_pending_otp", o.flags.SetPendingOTP(ctx, o.flow.Email))
	}
	switch {
	case e.Has(flows.EffectClearAuthState):
		o.storeWrite(in, "clear_auth_state", o.flags.ClearAuthState(ctx))
	case e.Has(flows.EffectClearPendingOTP):
		o.storeWrite(in, "clear_pending_otp", o.flags.ClearPendingOTP(ctx))
	case e.Has(flows.EffectClearResetFlow):
		o.storeWrite(in, "clear_reset_flow", o.flags.ClearResetFlow(ctx))
	}
	if e.Has(flows.EffectRecordFirstLogin) {
		o.storeWrite(in, "record_first_login", o.flags.RecordFirstLoginCompleted(ctx, o.flow.UserID))
	}
	if e.Has(flows.EffectStopCooldown) {
		o.stopCooldownLocked()
	}
	if e.Has(flows.EffectStartCooldown) {
		o.startCooldownLocked()
	}
	if e.Has(flows.EffectAuthenticate) {
		o.session.SetAuthenticated(true)
	}
	if e.Has(flows.EffectDeauthenticate) {
		o.session.SetAuthenticated(false)
	}
	if e.Has(flows.EffectClearCredentials) {
		o.inputs = Inputs{}
	}
	if e.Has(flows.EffectWriteLifecycleMarkers) {
		o.writeLifecycleLocked(in)
	}
	if out.Notice != "" {
		o.alert = Alert{Kind: AlertNotice, Message: out.Notice, Visible: true}
	}

	o.logger.Debug().
		Str("op", in.op).
		Str("flow_id", FlowIDFromContext(in.ctx)).
		Str("from", from.String()).
		Str("to", o.stage.String()).
		Str("branch", o.branch.String()).
		Msg("transition")
}

// writeLifecycleLocked records this install's version and that it has
// launched, so the next start takes neither the reinstall nor the first
// launch path.
func (o *Orchestrator) writeLifecycleLocked(in intent) {
	ctx := context.WithoutCancel(in.ctx)
	o.storeWrite(in, "set_installed_version", o.flags.SetInstalledVersion(ctx, o.config.App.Version))
	o.storeWrite(in, "mark_launched", o.flags.MarkLaunched(ctx))
}

func (o *Orchestrator) storeWrite(in intent, what string, err error) {
	if err == nil {
		return
	}
	o.metrics.Inc(MetricStoreWriteFailure)
	o.logger.Warn().
		Str("op", in.op).
		Str("write", what).
		Err(err).
		Msg("local store write failed")
}

func (o *Orchestrator) raiseLocked(op string, err error) {
	o.alert = alertFor(op, err, o.config.Password)
}

func (o *Orchestrator) snapshotLocked() State {
	return State{
		Stage:                 o.stage,
		Branch:                o.branch,
		Ready:                 o.ready,
		Busy:                  o.busy,
		Alert:                 o.alert,
		ResendCooldownSeconds: o.cooldownSeconds,
		ShowTwoFactorAuth:     o.stage == StageAwaitingOTP,
		ShowPasswordChange:    o.stage == StagePasswordChangeRequired,
		IsPasswordResetFlow:   o.flow.ResetFlow,
		IsFirstLogin:          o.flow.FirstLogin,
		Authenticated:         o.session.Authenticated(),
		Inputs:                o.inputs,
	}
}

// notifyLocked publishes the current snapshot. A full subscriber channel
// loses its oldest pending snapshot so the newest is always delivered.
func (o *Orchestrator) notifyLocked() {
	if len(o.subs) == 0 {
		return
	}
	s := o.snapshotLocked()
	for _, ch := range o.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Snapshot returns the current observable state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe returns a channel that receives the current state immediately
// and again after every change. Slow readers skip intermediate states. The
// returned func unsubscribes and closes the channel; Close does the same for
// all subscribers.
func (o *Orchestrator) Subscribe(buffer int) (<-chan State, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
		})
	}
}

// Metrics returns the orchestrator's counters.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// MetricsSnapshot satisfies the metrics exporters' source interface.
func (o *Orchestrator) MetricsSnapshot() MetricsSnapshot {
	return o.metrics.Snapshot()
}

// AuditDropped reports audit events dropped because the buffer was full.
func (o *Orchestrator) AuditDropped() uint64 {
	return o.audit.Dropped()
}

// Close stops the cooldown task, closes subscriber channels and flushes the
// audit dispatcher. In-flight intents return ErrSuperseded. Close is idempotent.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.epoch++
	o.busy = false
	o.stopCooldownLocked()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	o.mu.Unlock()

	o.cooldownWG.Wait()
	o.audit.Close()
	o.logger.Debug().Msg("orchestrator closed")
	return nil
}

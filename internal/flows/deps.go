package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage mirrors the orchestrator's stage enum.
type Stage uint8

const (
	StageUnauthenticated Stage = iota
	StageCredentialsSubmitted
	StagePasswordResetRequested
	StageAwaitingOTP
	StagePasswordChangeRequired
	StageAuthenticated
	StageSignedOut
)

// Branch distinguishes why a password change is required.
type Branch uint8

const (
	BranchNone Branch = iota
	BranchOnboarding
	BranchReset
)

// Effect is a bit set of side effects an Outcome asks the caller to apply.
type Effect uint16

const (
	EffectPersistPendingOTP Effect = 1 << iota
	EffectClearPendingOTP
	EffectPersistResetFlow
	EffectClearResetFlow
	EffectRecordFirstLogin
	EffectDispatchOTP
	EffectStartCooldown
	EffectStopCooldown
	EffectAuthenticate
	EffectDeauthenticate
	EffectClearCredentials
	EffectWriteLifecycleMarkers
)

// EffectClearAuthState clears both pending-OTP and reset-flow state.
const EffectClearAuthState = EffectClearPendingOTP | EffectClearResetFlow

// Has reports whether all bits of x are set.
func (e Effect) Has(x Effect) bool {
	return e&x == x
}

// FlowContext is the in-memory flow state an intent starts from.
type FlowContext struct {
	Email      string
	UserID     string
	FirstLogin bool
	ResetFlow  bool
}

// Outcome is the result of a flow. When Err is set the caller keeps its
// pre-call stage and applies no effects.
type Outcome struct {
	Stage   Stage
	Branch  Branch
	Effects Effect
	Flow    FlowContext
	Notice  string
	Reason  string
	Err     error
}

// SessionRecord is a flow-local view of a provider session.
type SessionRecord struct {
	UserID string
	Email  string
}

// PendingOTPRecord is a flow-local view of the persisted pending-OTP pair.
type PendingOTPRecord struct {
	Pending bool
	Email   string
}

// Metrics carries metric IDs used by flows.
type Metrics struct {
	LoginSuccess          int
	LoginFailure          int
	AccessDenied          int
	ValidationFailure     int
	OTPSent               int
	OTPSendFailure        int
	OTPVerifySuccess      int
	OTPVerifyFailure      int
	PasswordChangeSuccess int
	PasswordChangeFailure int
	PasswordResetRequest  int
	SignOut               int
	RestoreReinstall      int
	RestoreFirstLaunch    int
	RestoreCorruptState   int
	RestoreResumed        int
	RestoreAuthenticated  int
	ProviderFailure       int
}

// Events carries audit event names used by flows.
type Events struct {
	LoginSuccess           string
	LoginFailure           string
	AccessDenied           string
	OTPSent                string
	OTPVerified            string
	OTPFailure             string
	PasswordChanged        string
	PasswordChangeFailure  string
	PasswordResetRequested string
	SignOut                string
	SessionInvalidated     string
	SessionRestored        string
}

// Errors carries host-level sentinel errors used by flows.
type Errors struct {
	NotReady             error
	Validation           error
	AccessDenied         error
	AuthenticationFailed error
	OTPInvalid           error
	Provider             error
	CorruptLocalState    error

	ProviderInvalidCredentials error
	ProviderInvalidCode        error
}

// Deps captures the dependencies of every flow.
type Deps struct {
	AppVersion string

	IsEmailAuthorized  func(context.Context, string) (bool, error)
	SignInWithPassword func(context.Context, string, string) (SessionRecord, error)
	SendOneTimeCode    func(context.Context, string) error
	VerifyOneTimeCode  func(context.Context, string, string) error
	CurrentSession     func(context.Context) (*SessionRecord, error)
	UpdatePassword     func(context.Context, string) error
	SignOut            func(context.Context) error

	FirstLoginCompleted func(context.Context, string) (bool, error)
	PendingOTP          func(context.Context) (PendingOTPRecord, error)
	ResetFlowActive     func(context.Context) (bool, error)
	InstalledVersion    func(context.Context) (string, bool, error)
	PreviouslyLaunched  func(context.Context) (bool, error)

	ValidLoginInput  func(email, password string) bool
	ValidEmail       func(string) bool
	ValidOTPCode     func(string) bool
	CheckNewPassword func(newPassword, confirm string) error

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(ctx context.Context, eventType string, success bool, userID string, err error, metadata func() map[string]string)
	Warn      func(msg string, err error)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d *Deps) withDefaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if d.Warn == nil {
		d.Warn = func(string, error) {}
	}
}

// NormalizeEmail lower-cases and trims an email for allow-list lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// providerError classifies a provider failure. When specific matches err the
// host error is returned as is; anything else becomes a wrapped provider error.
func providerError(err, specific, host, provider error) error {
	if specific != nil && host != nil && errors.Is(err, specific) {
		return host
	}
	return fmt.Errorf("%w: %v", provider, err)
}

func failed(err error) Outcome {
	return Outcome{Err: err}
}

func emailMeta(email string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"email": NormalizeEmail(email)}
	}
}

func reasonMeta(email, reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"email":  NormalizeEmail(email),
			"reason": reason,
		}
	}
}

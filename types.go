package fleetAuth

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/fleetAuth/internal/audit"
	"github.com/MrEthical07/fleetAuth/internal/flows"
	"github.com/rs/zerolog"
)

// OTPCodeLength is the number of digits in a one-time code.
const OTPCodeLength = 6

// Stage is the orchestrator's position in the authentication state machine.
type Stage uint8

const (
	StageUnauthenticated        = Stage(flows.StageUnauthenticated)
	StageCredentialsSubmitted   = Stage(flows.StageCredentialsSubmitted)
	StagePasswordResetRequested = Stage(flows.StagePasswordResetRequested)
	StageAwaitingOTP            = Stage(flows.StageAwaitingOTP)
	StagePasswordChangeRequired = Stage(flows.StagePasswordChangeRequired)
	StageAuthenticated          = Stage(flows.StageAuthenticated)
	StageSignedOut              = Stage(flows.StageSignedOut)
)

func (s Stage) String() string {
	switch s {
	case StageUnauthenticated:
		return "unauthenticated"
	case StageCredentialsSubmitted:
		return "credentials_submitted"
	case StagePasswordResetRequested:
		return "password_reset_requested"
	case StageAwaitingOTP:
		return "awaiting_otp"
	case StagePasswordChangeRequired:
		return "password_change_required"
	case StageAuthenticated:
		return "authenticated"
	case StageSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Branch tells why a password change is required.
type Branch uint8

const (
	BranchNone       = Branch(flows.BranchNone)
	BranchOnboarding = Branch(flows.BranchOnboarding)
	BranchReset      = Branch(flows.BranchReset)
)

func (b Branch) String() string {
	switch b {
	case BranchOnboarding:
		return "onboarding"
	case BranchReset:
		return "reset"
	default:
		return "none"
	}
}

// AlertKind classifies the one-shot user-facing message.
type AlertKind uint8

const (
	AlertNone AlertKind = iota
	AlertValidation
	AlertAccessDenied
	AlertAuthenticationFailed
	AlertOTPInvalid
	AlertProviderError
	AlertNotice
)

func (k AlertKind) String() string {
	switch k {
	case AlertValidation:
		return "validation"
	case AlertAccessDenied:
		return "access_denied"
	case AlertAuthenticationFailed:
		return "authentication_failed"
	case AlertOTPInvalid:
		return "otp_invalid"
	case AlertProviderError:
		return "provider_error"
	case AlertNotice:
		return "notice"
	default:
		return "none"
	}
}

// Alert is the one-shot message shown to the user. Visible is cleared by
// DismissAlert or by the next intent.
type Alert struct {
	Kind    AlertKind
	Message string
	Visible bool
}

// Inputs are the in-memory credential buffers. They are never persisted.
type Inputs struct {
	Email           string
	Password        string
	NewPassword     string
	ConfirmPassword string
	OTPDigits       [OTPCodeLength]string
}

// OTPCode joins the digit buffer.
func (in Inputs) OTPCode() string {
	var code string
	for _, d := range in.OTPDigits {
		code += d
	}
	return code
}

// State is an immutable snapshot of everything the UI observes.
type State struct {
	Stage  Stage
	Branch Branch

	Ready bool
	Busy  bool
	Alert Alert

	ResendCooldownSeconds int

	ShowTwoFactorAuth   bool
	ShowPasswordChange  bool
	IsPasswordResetFlow bool
	IsFirstLogin        bool
	Authenticated       bool

	Inputs Inputs
}

// CanResendOTP reports whether the resend action is enabled.
func (s State) CanResendOTP() bool {
	return s.Stage == StageAwaitingOTP && s.ResendCooldownSeconds == 0 && !s.Busy
}

// ProviderSession is what the orchestrator needs from a provider session.
type ProviderSession struct {
	UserID string
	Email  string
}

// IdentityProvider is the hosted auth and data service. Implementations wrap
// ErrProviderInvalidCredentials and ErrProviderInvalidCode for rejected
// credentials and codes; any other error is treated as a provider failure.
//
// CurrentSession returns (nil, nil) when there is no session.
// IsEmailAuthorized receives a lower-cased, trimmed email.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)
	SendOneTimeCode(ctx context.Context, email string) error
	VerifyOneTimeCode(ctx context.Context, email, code string) (*ProviderSession, error)
	CurrentSession(ctx context.Context) (*ProviderSession, error)
	UpdatePassword(ctx context.Context, newPassword string) error
	SignOut(ctx context.Context) error
	IsEmailAuthorized(ctx context.Context, email string) (bool, error)
}

// LocalStore is the durable key-value store for flow flags. Get returns
// (nil, nil) for absent keys. Every kvstore backend satisfies it.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionState is the app-wide authenticated flag the UI navigates on.
// Only the orchestrator mutates it.
type SessionState interface {
	SetAuthenticated(bool)
	Authenticated() bool
}

// AuditEvent is a structured audit record emitted by the orchestrator.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// LogSink is an [AuditSink] that logs events through zerolog.
type LogSink = internalaudit.LogSink

// NewLogSink creates a [LogSink] on logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

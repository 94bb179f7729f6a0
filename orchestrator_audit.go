package fleetAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventAccessDenied           = "access_denied"
	auditEventOTPSent                = "otp_sent"
	auditEventOTPVerified            = "otp_verified"
	auditEventOTPFailure             = "otp_failure"
	auditEventPasswordChanged        = "password_changed"
	auditEventPasswordChangeFailure  = "password_change_failure"
	auditEventPasswordResetRequested = "password_reset_requested"
	auditEventSignOut                = "sign_out"
	auditEventSessionInvalidated     = "session_invalidated"
	auditEventSessionRestored        = "session_restored"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrValidation           AuditErrorCode = "validation"
	auditErrAccessDenied         AuditErrorCode = "access_denied"
	auditErrAuthenticationFailed AuditErrorCode = "authentication_failed"
	auditErrOTPInvalid           AuditErrorCode = "otp_invalid"
	auditErrProvider             AuditErrorCode = "provider_error"
	auditErrCorruptState         AuditErrorCode = "corrupt_local_state"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrAccessDenied):
		return auditErrAccessDenied
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrProviderInvalidCredentials):
		return auditErrAuthenticationFailed
	case errors.Is(err, ErrOTPInvalid), errors.Is(err, ErrProviderInvalidCode):
		return auditErrOTPInvalid
	case errors.Is(err, ErrCorruptLocalState):
		return auditErrCorruptState
	default:
		// Unclassified errors come straight from a provider call.
		return auditErrProvider
	}
}

// emitAudit builds the event lazily so disabled auditing costs nothing.
func (o *Orchestrator) emitAudit(ctx context.Context, eventType string, success bool, userID string, err error, metadata func() map[string]string) {
	if o.audit == nil {
		return
	}

	event := AuditEvent{
		EventType: eventType,
		FlowID:    FlowIDFromContext(ctx),
		UserID:    userID,
		Success:   success,
	}
	if err != nil {
		event.Error = string(auditErrorCode(err))
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	o.audit.Emit(ctx, event)
}

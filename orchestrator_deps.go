package fleetAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/fleetAuth/internal/flows"
)

var errNoProviderSession = errors.New("provider returned no session")

func (o *Orchestrator) observeProvider(start time.Time) {
	o.metrics.Observe(MetricProviderLatency, time.Since(start))
}

// flowDeps binds the flows to this orchestrator's provider, flag store,
// validators, metrics and audit dispatcher.
func (o *Orchestrator) flowDeps() flows.Deps {
	requireDot := o.config.Email.RequireDomainDot

	return flows.Deps{
		AppVersion: o.config.App.Version,

		IsEmailAuthorized: func(ctx context.Context, email string) (bool, error) {
			defer o.observeProvider(time.Now())
			return o.provider.IsEmailAuthorized(ctx, email)
		},
		SignInWithPassword: func(ctx context.Context, email, password string) (flows.SessionRecord, error) {
			defer o.observeProvider(time.Now())
			sess, err := o.provider.SignInWithPassword(ctx, email, password)
			if err != nil {
				return flows.SessionRecord{}, err
			}
			if sess == nil {
				return flows.SessionRecord{}, errNoProviderSession
			}
			return flows.SessionRecord{UserID: sess.UserID, Email: sess.Email}, nil
		},
		SendOneTimeCode: func(ctx context.Context, email string) error {
			defer o.observeProvider(time.Now())
			return o.provider.SendOneTimeCode(ctx, email)
		},
		VerifyOneTimeCode: func(ctx context.Context, email, code string) error {
			defer o.observeProvider(time.Now())
			_, err := o.provider.VerifyOneTimeCode(ctx, email, code)
			return err
		},
		CurrentSession: func(ctx context.Context) (*flows.SessionRecord, error) {
			defer o.observeProvider(time.Now())
			sess, err := o.provider.CurrentSession(ctx)
			if err != nil || sess == nil {
				return nil, err
			}
			return &flows.SessionRecord{UserID: sess.UserID, Email: sess.Email}, nil
		},
		UpdatePassword: func(ctx context.Context, newPassword string) error {
			defer o.observeProvider(time.Now())
			return o.provider.UpdatePassword(ctx, newPassword)
		},
		SignOut: func(ctx context.Context) error {
			defer o.observeProvider(time.Now())
			return o.provider.SignOut(ctx)
		},

		FirstLoginCompleted: o.flags.FirstLoginCompleted,
		PendingOTP: func(ctx context.Context) (flows.PendingOTPRecord, error) {
			p, err := o.flags.PendingOTP(ctx)
			return flows.PendingOTPRecord{Pending: p.Pending, Email: p.Email}, err
		},
		ResetFlowActive: func(ctx context.Context) (bool, error) {
			rec, ok, err := o.flags.ResetFlow(ctx)
			return ok && rec.Active, err
		},
		InstalledVersion:   o.flags.InstalledVersion,
		PreviouslyLaunched: o.flags.PreviouslyLaunched,

		ValidLoginInput: func(email, password string) bool {
			return password != "" && validEmail(email, requireDot)
		},
		ValidEmail: func(email string) bool {
			return validEmail(email, requireDot)
		},
		ValidOTPCode:     ValidOTPCode,
		CheckNewPassword: o.policy.CheckConfirmed,

		MetricInc: func(id int) { o.metrics.Inc(MetricID(id)) },
		EmitAudit: o.emitAudit,
		Warn: func(msg string, err error) {
			o.logger.Warn().Err(err).Msg(msg)
		},

		Metrics: flows.Metrics{
			LoginSuccess:          int(MetricLoginSuccess),
			LoginFailure:          int(MetricLoginFailure),
			AccessDenied:          int(MetricAccessDenied),
			ValidationFailure:     int(MetricValidationFailure),
			OTPSent:               int(MetricOTPSent),
			OTPSendFailure:        int(MetricOTPSendFailure),
			OTPVerifySuccess:      int(MetricOTPVerifySuccess),
			OTPVerifyFailure:      int(MetricOTPVerifyFailure),
			PasswordChangeSuccess: int(MetricPasswordChangeSuccess),
			PasswordChangeFailure: int(MetricPasswordChangeFailure),
			PasswordResetRequest:  int(MetricPasswordResetRequest),
			SignOut:               int(MetricSignOut),
			RestoreReinstall:      int(MetricRestoreReinstall),
			RestoreFirstLaunch:    int(MetricRestoreFirstLaunch),
			RestoreCorruptState:   int(MetricRestoreCorruptState),
			RestoreResumed:        int(MetricRestoreResumed),
			RestoreAuthenticated:  int(MetricRestoreAuthenticated),
			ProviderFailure:       int(MetricProviderFailure),
		},
		Events: flows.Events{
			LoginSuccess:           auditEventLoginSuccess,
			LoginFailure:           auditEventLoginFailure,
			AccessDenied:           auditEventAccessDenied,
			OTPSent:                auditEventOTPSent,
			OTPVerified:            auditEventOTPVerified,
			OTPFailure:             auditEventOTPFailure,
			PasswordChanged:        auditEventPasswordChanged,
			PasswordChangeFailure:  auditEventPasswordChangeFailure,
			PasswordResetRequested: auditEventPasswordResetRequested,
			SignOut:                auditEventSignOut,
			SessionInvalidated:     auditEventSessionInvalidated,
			SessionRestored:        auditEventSessionRestored,
		},
		Errors: flows.Errors{
			NotReady:                   ErrNotReady,
			Validation:                 ErrValidation,
			AccessDenied:               ErrAccessDenied,
			AuthenticationFailed:       ErrAuthenticationFailed,
			OTPInvalid:                 ErrOTPInvalid,
			Provider:                   ErrProvider,
			CorruptLocalState:          ErrCorruptLocalState,
			ProviderInvalidCredentials: ErrProviderInvalidCredentials,
			ProviderInvalidCode:        ErrProviderInvalidCode,
		},
	}
}

package internaldefs

import (
	fleetAuth "github.com/MrEthical07/fleetAuth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   fleetAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   fleetAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: fleetAuth.MetricLoginSuccess, Name: "fleetauth_login_success_total", Help: "Password sign-ins that advanced to OTP verification."},
	{ID: fleetAuth.MetricLoginFailure, Name: "fleetauth_login_failure_total", Help: "Failed password sign-ins."},
	{ID: fleetAuth.MetricAccessDenied, Name: "fleetauth_access_denied_total", Help: "Emails rejected by the authorization list."},
	{ID: fleetAuth.MetricValidationFailure, Name: "fleetauth_validation_failure_total", Help: "Intents rejected by local input validation."},
	{ID: fleetAuth.MetricOTPSent, Name: "fleetauth_otp_sent_total", Help: "One-time codes dispatched."},
	{ID: fleetAuth.MetricOTPSendFailure, Name: "fleetauth_otp_send_failure_total", Help: "Failed one-time code dispatches."},
	{ID: fleetAuth.MetricOTPVerifySuccess, Name: "fleetauth_otp_verify_success_total", Help: "Accepted one-time codes."},
	{ID: fleetAuth.MetricOTPVerifyFailure, Name: "fleetauth_otp_verify_failure_total", Help: "Rejected one-time codes."},
	{ID: fleetAuth.MetricOTPResendSuppressed, Name: "fleetauth_otp_resend_suppressed_total", Help: "Resend requests ignored during the cooldown."},
	{ID: fleetAuth.MetricPasswordChangeSuccess, Name: "fleetauth_password_change_success_total", Help: "Successful password changes."},
	{ID: fleetAuth.MetricPasswordChangeFailure, Name: "fleetauth_password_change_failure_total", Help: "Password changes the provider rejected."},
	{ID: fleetAuth.MetricPasswordResetRequest, Name: "fleetauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: fleetAuth.MetricSignOut, Name: "fleetauth_sign_out_total", Help: "Sign-outs."},
	{ID: fleetAuth.MetricRestoreReinstall, Name: "fleetauth_restore_reinstall_total", Help: "Startups that detected a reinstall."},
	{ID: fleetAuth.MetricRestoreFirstLaunch, Name: "fleetauth_restore_first_launch_total", Help: "Startups that invalidated a session on first launch."},
	{ID: fleetAuth.MetricRestoreCorruptState, Name: "fleetauth_restore_corrupt_state_total", Help: "Startups that found corrupt pending-OTP state."},
	{ID: fleetAuth.MetricRestoreResumed, Name: "fleetauth_restore_resumed_total", Help: "Startups that resumed OTP verification."},
	{ID: fleetAuth.MetricRestoreAuthenticated, Name: "fleetauth_restore_authenticated_total", Help: "Startups that restored an authenticated session."},
	{ID: fleetAuth.MetricProviderFailure, Name: "fleetauth_provider_failure_total", Help: "Provider or transport failures."},
	{ID: fleetAuth.MetricBusyRejected, Name: "fleetauth_busy_rejected_total", Help: "Intents rejected while another was running."},
	{ID: fleetAuth.MetricStaleCompletionDiscarded, Name: "fleetauth_stale_completion_discarded_total", Help: "Completions discarded after a sign-out or close."},
	{ID: fleetAuth.MetricStoreWriteFailure, Name: "fleetauth_store_write_failure_total", Help: "Failed local store writes."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: fleetAuth.MetricProviderLatency, Name: "fleetauth_provider_latency_seconds", Help: "Identity provider call latency."},
}

// GaugeDef names one gauge read from the orchestrator state snapshot.
type GaugeDef struct {
	Name  string
	Help  string
	Value func(fleetAuth.State) int64
}

// GaugeDefs lists the state gauges in exposition order.
var GaugeDefs = []GaugeDef{
	{Name: "fleetauth_authenticated", Help: "1 while the app session is authenticated.", Value: func(s fleetAuth.State) int64 { return boolValue(s.Authenticated) }},
	{Name: "fleetauth_busy", Help: "1 while an intent is running.", Value: func(s fleetAuth.State) int64 { return boolValue(s.Busy) }},
	{Name: "fleetauth_resend_cooldown_seconds", Help: "Seconds until a one-time code can be resent.", Value: func(s fleetAuth.State) int64 { return int64(s.ResendCooldownSeconds) }},
}

// StageGauge is exported one-hot with a stage label.
const (
	StageGauge     = "fleetauth_stage"
	StageGaugeHelp = "Current authentication stage; the active stage reads 1."
	StageLabel     = "stage"
)

// Stages lists every stage in exposition order.
var Stages = []fleetAuth.Stage{
	fleetAuth.StageUnauthenticated,
	fleetAuth.StageCredentialsSubmitted,
	fleetAuth.StagePasswordResetRequested,
	fleetAuth.StageAwaitingOTP,
	fleetAuth.StagePasswordChangeRequired,
	fleetAuth.StageAuthenticated,
	fleetAuth.StageSignedOut,
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "fleetauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

func boolValue(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// HistogramBounds are the upper bounds in seconds, matching the in-process
// bucket layout.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix names the OTel bucket gauges.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

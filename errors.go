package fleetAuth

import "errors"

var (
	// ErrValidation reports malformed local input. It never reaches the network.
	ErrValidation = errors.New("invalid input")
	// ErrAccessDenied reports an email that is not on the authorization list.
	ErrAccessDenied = errors.New("access denied")
	// ErrAuthenticationFailed reports credentials the provider rejected.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrOTPInvalid reports a wrong or expired one-time code.
	ErrOTPInvalid = errors.New("one-time code invalid or expired")
	// ErrProvider wraps network and provider failures.
	ErrProvider = errors.New("identity provider error")
	// ErrCorruptLocalState marks inconsistent persisted flags. Restore resolves it
	// by forcing sign-out and never returns it to callers.
	ErrCorruptLocalState = errors.New("corrupt local authentication state")

	// ErrNotReady is returned by intents before InitializeAuthState completes.
	ErrNotReady = errors.New("orchestrator not ready")
	// ErrBusy is returned when another intent is still running.
	ErrBusy = errors.New("another operation is in progress")
	// ErrInvalidTransition is returned for intents that are not legal in the current stage.
	ErrInvalidTransition = errors.New("operation not allowed in current stage")
	// ErrSuperseded is returned when an intent's result was discarded because a
	// sign-out or Close happened while it was in flight.
	ErrSuperseded = errors.New("operation superseded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// Provider implementations wrap these so the orchestrator can classify failures.
var (
	ErrProviderInvalidCredentials = errors.New("provider: invalid login credentials")
	ErrProviderInvalidCode        = errors.New("provider: invalid one-time code")
)

// Package fleetAuth provides the client-side authentication orchestrator for the
// fleet app: password sign-in against an allow-listed hosted identity provider,
// a mandatory one-time-code second factor, a forced password change on first
// login or after a reset, and startup restore with reinstall and first-launch
// detection.
//
// An [Orchestrator] is built once with [Builder] and driven by blocking intent
// methods (Login, VerifyOTP, ResendOTP, ChangePassword, ForgotPassword,
// SignOut). UI layers read [State] snapshots through Snapshot or Subscribe.
//
// # Architecture boundaries
//
// fleetAuth is the public surface. It exposes [Orchestrator], [Builder],
// [Config] and value types ([State], [Alert], MetricsSnapshot). Transition
// logic lives in internal/flows and flag persistence in internal/stores; both
// are reached only through the Orchestrator.
//
// # What this package must NOT do
//
//   - Log or persist passwords and one-time codes.
//   - Surface raw provider errors; every failure is classified first.
//   - Import any sub-package that re-imports fleetAuth (no import cycles).
package fleetAuth

// Package flows contains the pure transition functions behind every
// Orchestrator intent.
//
// Each flow function (RunLogin, RunVerifyOTP, RunRestore, etc.) accepts a
// typed dependency struct, talks to the identity provider and reads persisted
// flags through it, and returns an [Outcome]. An Outcome names the next stage
// and the side effects the caller must apply (store writes, cooldown control,
// session-state changes). Flows never write to the store themselves, so a
// caller can drop a superseded Outcome without leaving partial writes behind.
//
// # Architecture boundaries
//
// Flow functions coordinate provider calls, flag reads, audit and metrics.
// They do NOT own any of these resources; ownership stays with the
// Orchestrator.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import fleetAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows

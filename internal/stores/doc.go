// Package stores maps fleetAuth's persisted authentication flags onto a
// byte-valued key-value backend.
//
// # Design
//
// Each flag lives under a fixed key. Booleans are one byte. The password-reset
// flow is a versioned binary record. Unknown versions, truncated payloads
// and trailing bytes read as "absent", not as an error. The pending-OTP pair
// keeps its invariant by write ordering (email is written before the flag)
// and is cleared with a single multi-key delete.
//
// # Architecture boundaries
//
// This package owns key naming and record encoding. It does NOT decide when
// flags change; that belongs to the flow functions and the orchestrator.
//
// # What this package must NOT do
//
//   - Import fleetAuth or any sibling internal package.
//   - Store passwords or one-time codes.
package stores

// Package session models the identity provider's session on the device and
// persists it between process starts.
//
// # Binary encoding
//
// A [Session] is stored as a versioned binary record with uint16
// length-prefixed strings. Decoding rejects unknown versions, truncated data
// and trailing bytes.
//
// # Architecture boundaries
//
// This package owns the [Session] model, its encoding and the [Cache] that
// keeps it in a key-value store. It does NOT talk to the provider or decide
// whether a session is usable for the app; the provider client and the
// orchestrator do.
//
// # What this package must NOT do
//
//   - Import fleetAuth, provider or jwt.
//   - Store passwords or one-time codes.
package session

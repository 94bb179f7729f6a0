// Package kvstore provides the durable key-value backends that hold fleetAuth's
// persisted flow flags and lifecycle markers.
//
// # Backends
//
//   - [Memory] keeps values in process memory. It is intended for tests and
//     ephemeral sessions.
//   - [SQLite] stores values in an on-device SQLite database whose schema is
//     managed by embedded goose migrations.
//   - [Redis] stores values under a key prefix in a Redis instance, for
//     kiosk or shared-terminal deployments that keep device state centrally.
//
// # Contract
//
// Get returns (nil, nil) for absent keys. Set is last-write-wins per key.
// Delete accepts several keys and removes them together; a missing key is not
// an error. No multi-key atomicity beyond Delete is promised.
package kvstore

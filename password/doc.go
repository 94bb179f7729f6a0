// Package password implements the client-side new-password policy.
//
// A [Policy] checks length and character classes before a password is ever
// sent to the identity provider. Hashing and storage are the provider's job;
// this package never persists a password.
//
// # What this package must NOT do
//
//   - Import any other fleetAuth package.
//   - Log or retain plaintext passwords.
package password

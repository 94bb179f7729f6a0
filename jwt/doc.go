// Package jwt reads the claims of provider-issued access tokens.
//
// The device normally does not hold the provider's signing secret, so a
// [Reader] without a verify key only decodes claims it needs for local
// bookkeeping (subject, email, expiry). With a verify key configured, tokens
// are fully validated with HS256 and strict method checks.
package jwt

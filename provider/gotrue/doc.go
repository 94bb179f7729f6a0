// Package gotrue is a fleetAuth IdentityProvider for a hosted GoTrue auth
// server and its PostgREST data API.
//
// Password sign-in, one-time code send and verify, password update and logout
// go through the gotrue-go client against /auth/v1. The authorization list is
// a PostgREST table queried by email with postgrest-go. Every call is bound to
// the caller's context and to Config.Timeout. The session returned by sign-in
// or code verification is cached through [session.Cache] so it survives
// restarts, refreshed when its access token is close to expiry, and cleared on
// sign-out.
//
// Rejected credentials wrap [fleetAuth.ErrProviderInvalidCredentials] and
// rejected codes wrap [fleetAuth.ErrProviderInvalidCode]. Every other failure
// is an [*APIError] or a transport error.
package gotrue

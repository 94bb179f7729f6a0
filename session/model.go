package session

import "time"

// Session is the provider-issued credential set cached on the device.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string

	IssuedAt  int64
	ExpiresAt int64
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && now.Unix() >= s.ExpiresAt
}

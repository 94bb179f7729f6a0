package fleetAuth

import "sync/atomic"

// AppSession is the default SessionState. It is safe for concurrent use.
type AppSession struct {
	authenticated atomic.Bool
	onChange      func(bool)
}

// NewAppSession returns a SessionState starting unauthenticated. onChange, if
// non-nil, is called after every change of value.
func NewAppSession(onChange func(bool)) *AppSession {
	return &AppSession{onChange: onChange}
}

func (s *AppSession) SetAuthenticated(v bool) {
	old := s.authenticated.Swap(v)
	if old != v && s.onChange != nil {
		s.onChange(v)
	}
}

func (s *AppSession) Authenticated() bool {
	return s.authenticated.Load()
}

package stores

import (
	"context"
	"errors"
	"fmt"
)

const (
	KeyPendingOTP            = "pending_otp"
	KeyPendingOTPEmail       = "pending_otp_email"
	KeyPasswordResetFlow     = "password_reset_flow"
	KeyFirstLoginPrefix      = "first_login_completed_"
	KeyAppInstalledVersion   = "app_installed_version"
	KeyAppPreviouslyLaunched = "app_previously_launched"
)

var (
	ErrFlowStateBackend = errors.New("flow state backend unavailable")
	ErrEmptyUserID      = errors.New("flow state user id is empty")
	ErrEmptyEmail       = errors.New("flow state email is empty")
)

// KV is the subset of a key-value store the flow state needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// PendingOTP is the persisted "verification in progress" pair.
type PendingOTP struct {
	Pending bool
	Email   string
}

// Consistent reports whether the pair satisfies pending => email present.
func (p PendingOTP) Consistent() bool {
	return !p.Pending || p.Email != ""
}

// FlowState reads and writes authentication flags.
type FlowState struct {
	kv KV
}

func NewFlowState(kv KV) *FlowState {
	return &FlowState{kv: kv}
}

func FirstLoginKey(userID string) string {
	return KeyFirstLoginPrefix + userID
}

func (s *FlowState) PendingOTP(ctx context.Context) (PendingOTP, error) {
	flag, err := s.getBool(ctx, KeyPendingOTP)
	if err != nil {
		return PendingOTP{}, err
	}
	email, err := s.getString(ctx, KeyPendingOTPEmail)
	if err != nil {
		return PendingOTP{}, err
	}
	return PendingOTP{Pending: flag, Email: email}, nil
}

// SetPendingOTP writes the email before the flag so a crash between the two
// writes never leaves the flag without its email.
func (s *FlowState) SetPendingOTP(ctx context.Context, email string) error {
	if email == "" {
		return ErrEmptyEmail
	}
	if err := s.set(ctx, KeyPendingOTPEmail, []byte(email)); err != nil {
		return err
	}
	return s.set(ctx, KeyPendingOTP, encodeBool(true))
}

// ClearPendingOTP removes the flag and its email together.
func (s *FlowState) ClearPendingOTP(ctx context.Context) error {
	return s.del(ctx, KeyPendingOTP, KeyPendingOTPEmail)
}

func (s *FlowState) ResetFlow(ctx context.Context) (ResetFlow, bool, error) {
	raw, err := s.get(ctx, KeyPasswordResetFlow)
	if err != nil || raw == nil {
		return ResetFlow{}, false, err
	}
	rec, ok := DecodeResetFlow(raw)
	return rec, ok, nil
}

func (s *FlowState) SetResetFlow(ctx context.Context, email string) error {
	if email == "" {
		return ErrEmptyEmail
	}
	raw, err := EncodeResetFlow(ResetFlow{Active: true, Email: email})
	if err != nil {
		return err
	}
	return s.set(ctx, KeyPasswordResetFlow, raw)
}

func (s *FlowState) ClearResetFlow(ctx context.Context) error {
	return s.del(ctx, KeyPasswordResetFlow)
}

// ClearAuthState removes pending-OTP and reset-flow keys in one delete.
// Per-user first-login flags and lifecycle markers are untouched.
func (s *FlowState) ClearAuthState(ctx context.Context) error {
	return s.del(ctx, KeyPendingOTP, KeyPendingOTPEmail, KeyPasswordResetFlow)
}

func (s *FlowState) FirstLoginCompleted(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrEmptyUserID
	}
	return s.getBool(ctx, FirstLoginKey(userID))
}

func (s *FlowState) RecordFirstLoginCompleted(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return s.set(ctx, FirstLoginKey(userID), encodeBool(true))
}

// InstalledVersion returns the stored version marker and whether one exists.
func (s *FlowState) InstalledVersion(ctx context.Context) (string, bool, error) {
	raw, err := s.get(ctx, KeyAppInstalledVersion)
	if err != nil || raw == nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *FlowState) SetInstalledVersion(ctx context.Context, version string) error {
	return s.set(ctx, KeyAppInstalledVersion, []byte(version))
}

func (s *FlowState) PreviouslyLaunched(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyAppPreviouslyLaunched)
}

func (s *FlowState) MarkLaunched(ctx context.Context) error {
	return s.set(ctx, KeyAppPreviouslyLaunched, encodeBool(true))
}

func (s *FlowState) get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFlowStateBackend, err)
	}
	return raw, nil
}

func (s *FlowState) set(ctx context.Context, key string, value []byte) error {
	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrFlowStateBackend, err)
	}
	return nil
}

func (s *FlowState) del(ctx context.Context, keys ...string) error {
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: %v", ErrFlowStateBackend, err)
	}
	return nil
}

func (s *FlowState) getBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.get(ctx, key)
	if err != nil {
		return false, err
	}
	return decodeBool(raw), nil
}

func (s *FlowState) getString(ctx context.Context, key string) (string, error) {
	raw, err := s.get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func decodeBool(raw []byte) bool {
	return len(raw) == 1 && raw[0] == 1
}

package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleSession() *Session {
	return &Session{
		UserID:       "6f1c2a9e-0000-4000-8000-000000000001",
		Email:        "driver@fleet.io",
		AccessToken:  strings.Repeat("a", 900),
		RefreshToken: "r-123",
		IssuedAt:     1700000000,
		ExpiresAt:    1700003600,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleSession()
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	raw, _ := Encode(sampleSession())
	raw[0] = 99
	if _, err := Decode(raw); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected ErrInvalidVersion, got %v", err)
	}
}

func TestDecodeRejectsTruncatedAndTrailing(t *testing.T) {
	raw, _ := Encode(sampleSession())
	if _, err := Decode(raw[:len(raw)-3]); err == nil {
		t.Fatal("expected error for truncated data")
	}
	if _, err := Decode(append(raw, 0)); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
}

func TestEncodeRejectsOversizedField(t *testing.T) {
	s := sampleSession()
	s.AccessToken = strings.Repeat("x", 70000)
	if _, err := Encode(s); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	s := &Session{ExpiresAt: 100}
	if s.Expired(time.Unix(99, 0)) {
		t.Fatal("expected not expired before deadline")
	}
	if !s.Expired(time.Unix(100, 0)) {
		t.Fatal("expected expired at deadline")
	}
	if (&Session{}).Expired(time.Now()) {
		t.Fatal("zero expiry must not expire")
	}
}

func FuzzDecode(f *testing.F) {
	seed, _ := Encode(sampleSession())
	f.Add(seed)
	f.Add([]byte{1})
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(data)
	})
}

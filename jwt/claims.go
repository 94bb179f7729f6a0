package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("malformed access token")
	ErrMissingSubject = errors.New("access token has no subject")
	ErrInvalidToken   = errors.New("access token failed verification")
)

// Claims is the subset of provider access-token claims fleetAuth reads.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// Config controls optional verification.
type Config struct {
	VerifyKey []byte
	Issuer    string
	Leeway    time.Duration
}

// Reader parses access tokens. It is safe for concurrent use.
type Reader struct {
	config Config
}

func NewReader(cfg Config) (*Reader, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	return &Reader{config: cfg}, nil
}

// Verifying reports whether tokens are signature-checked.
func (r *Reader) Verifying() bool {
	return len(r.config.VerifyKey) > 0
}

// Parse returns the token's claims. Without a verify key the signature and
// expiry are not checked.
func (r *Reader) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	if r.Verifying() {
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(r.config.Leeway),
			jwt.WithExpirationRequired(),
		}
		if r.config.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(r.config.Issuer))
		}
		_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return r.config.VerifyKey, nil
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// ExpiresAtUnix returns the exp claim as unix seconds, or 0 when absent.
func (c *Claims) ExpiresAtUnix() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix()
}

// IssuedAtUnix returns the iat claim as unix seconds, or 0 when absent.
func (c *Claims) IssuedAtUnix() int64 {
	if c.IssuedAt == nil {
		return 0
	}
	return c.IssuedAt.Unix()
}

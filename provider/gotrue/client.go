package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	fleetAuth "github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/jwt"
	"github.com/MrEthical07/fleetAuth/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gotrueapi "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultRefreshSkew    = 30 * time.Second
	defaultAllowListTable = "authorized_emails"

	authPath = "/auth/v1"
	restPath = "/rest/v1"

	// verifyEmail is the verification type of an emailed six digit code.
	verifyEmail types.VerificationType = "email"
)

// Config describes the hosted project.
type Config struct {
	// BaseURL is the project URL, e.g. https://fleet.example.co.
	BaseURL string
	// APIKey is the public anon key sent with every request.
	APIKey string
	// AllowListTable is the PostgREST table with an email column.
	AllowListTable string
	// DisableSignup stops the OTP endpoint from creating unknown users.
	DisableSignup bool
	// RedirectURL is sent with code verification. Defaults to BaseURL.
	RedirectURL string
	Timeout     time.Duration
	// RefreshSkew refreshes sessions this long before their expiry.
	RefreshSkew time.Duration
	// SessionKey is the local store key of the cached session.
	SessionKey string
	Token      jwt.Config
}

// Client implements fleetAuth.IdentityProvider.
type Client struct {
	auth      gotrueapi.Client
	rest      *postgrest.Client
	table     string
	create    bool
	redirect  string
	skew      time.Duration
	timeout   time.Duration
	transport http.RoundTripper
	cache     *session.Cache
	tokens    *jwt.Reader
	logger    zerolog.Logger
	now       func() time.Time
	refreshMu sync.Mutex
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc's transport. A positive hc.Timeout
// replaces Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.transport = hc.Transport
		if hc.Timeout > 0 {
			c.timeout = hc.Timeout
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Client persisting its session into kv.
func New(cfg Config, kv session.KV, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gotrue: BaseURL required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gotrue: invalid BaseURL %q", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gotrue: APIKey required")
	}
	if kv == nil {
		return nil, errors.New("gotrue: session store required")
	}
	tokens, err := jwt.NewReader(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("gotrue: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = defaultRefreshSkew
	}
	if cfg.AllowListTable == "" {
		cfg.AllowListTable = defaultAllowListTable
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = base.String()
	}

	rest, err := postgrest.NewClientWithError(base.String()+restPath, "", map[string]string{
		"apikey":        cfg.APIKey,
		"Authorization": "Bearer " + cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gotrue: %w", err)
	}

	c := &Client{
		auth:     gotrueapi.New("", cfg.APIKey).WithCustomGoTrueURL(base.String() + authPath),
		rest:     rest,
		table:    cfg.AllowListTable,
		create:   !cfg.DisableSignup,
		redirect: cfg.RedirectURL,
		skew:     cfg.RefreshSkew,
		timeout:  cfg.Timeout,
		cache:    session.NewCache(kv, cfg.SessionKey),
		tokens:   tokens,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	rest.Transport.Parent = c.transport
	return c, nil
}

// SignInWithPassword uses the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*fleetAuth.ProviderSession, error) {
	var tr *types.TokenResponse
	err := c.call(ctx, "token", "", func(api gotrueapi.Client) (err error) {
		tr, err = api.SignInWithEmailPassword(email, password)
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isCredentialRejection(apiErr) {
			return nil, fmt.Errorf("%w: %v", fleetAuth.ErrProviderInvalidCredentials, apiErr)
		}
		return nil, err
	}
	return c.storeSession(ctx, &tr.Session)
}

// SendOneTimeCode emails a one-time code, creating the user when absent
// unless signups are disabled.
func (c *Client) SendOneTimeCode(ctx context.Context, email string) error {
	return c.call(ctx, "otp", "", func(api gotrueapi.Client) error {
		return api.OTP(types.OTPRequest{Email: email, CreateUser: c.create})
	})
}

// VerifyOneTimeCode exchanges a code for a session, which replaces any
// cached one.
func (c *Client) VerifyOneTimeCode(ctx context.Context, email, code string) (*fleetAuth.ProviderSession, error) {
	var s *types.Session
	err := c.call(ctx, "verify", "", func(api gotrueapi.Client) (err error) {
		s, err = verifyCode(api, types.VerifyForUserRequest{
			Type:       verifyEmail,
			Token:      code,
			RedirectTo: c.redirect,
			Email:      email,
		})
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isCodeRejection(apiErr) {
			return nil, fmt.Errorf("%w: %v", fleetAuth.ErrProviderInvalidCode, apiErr)
		}
		return nil, err
	}
	return c.storeSession(ctx, s)
}

// verifyCode posts to /verify. The library accepts only a 303 answer, while
// servers answer a code verification with 200 and the session as body, which
// the library reports as a status error carrying that body.
func verifyCode(api gotrueapi.Client, req types.VerifyForUserRequest) (*types.Session, error) {
	resp, err := api.VerifyForUser(req)
	if err == nil {
		return &resp.Session, nil
	}
	status, body, ok := splitStatusError(err)
	if !ok || status < 200 || status > 299 {
		return nil, err
	}
	var s types.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &s, nil
}

// CurrentSession returns the cached session, refreshing it when it is about
// to expire. A refresh the server rejects clears the cache and yields
// (nil, nil).
func (c *Client) CurrentSession(ctx context.Context) (*fleetAuth.ProviderSession, error) {
	s, err := c.liveSession(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}
	return &fleetAuth.ProviderSession{UserID: s.UserID, Email: s.Email}, nil
}

// UpdatePassword sets the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	return c.authorized(ctx, func(token string) error {
		return c.call(ctx, "user", token, func(api gotrueapi.Client) error {
			_, err := api.UpdateUser(types.UpdateUserRequest{Password: &newPassword})
			return err
		})
	})
}

// SignOut revokes the session server side and always clears the cache. The
// returned error reports only the server call.
func (c *Client) SignOut(ctx context.Context) error {
	s, loadErr := c.cache.Load(ctx)
	clearErr := c.cache.Clear(context.WithoutCancel(ctx))
	if clearErr != nil {
		c.logger.Warn().Err(clearErr).Msg("gotrue: clearing cached session failed")
	}
	if loadErr != nil {
		return loadErr
	}
	if s == nil || s.AccessToken == "" {
		return nil
	}

	err := c.call(ctx, "logout", s.AccessToken, func(api gotrueapi.Client) error {
		return api.Logout()
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && isSessionRejection(apiErr) {
		// Already revoked or expired server side.
		return nil
	}
	return err
}

// IsEmailAuthorized looks email up in the allow-list table.
func (c *Client) IsEmailAuthorized(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []struct {
		Email string `json:"email"`
	}
	start := c.now()
	_, err := c.rest.From(c.table).
		Select("email", "", false).
		Eq("email", email).
		Limit(1, "").
		ExecuteToWithContext(ctx, &rows)
	c.logger.Debug().
		Str("table", c.table).
		Dur("elapsed", c.now().Sub(start)).
		Err(err).
		Msg("gotrue: allow-list lookup")
	if err != nil {
		return false, fmt.Errorf("gotrue: allow-list lookup: %w", err)
	}
	return len(rows) > 0, nil
}

// authorized runs call with a live access token, refreshing and retrying
// once if the server rejects the token as expired.
func (c *Client) authorized(ctx context.Context, call func(token string) error) error {
	s, err := c.liveSession(ctx)
	if err != nil {
		return err
	}

	err = call(s.AccessToken)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || s.RefreshToken == "" {
		return err
	}

	s, err = c.refresh(ctx, s)
	if err != nil {
		return err
	}
	return call(s.AccessToken)
}

func (c *Client) liveSession(ctx context.Context) (*session.Session, error) {
	s, err := c.cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	if s.ExpiresAt == 0 || c.now().Add(c.skew).Unix() < s.ExpiresAt {
		return s, nil
	}
	if s.RefreshToken == "" {
		_ = c.cache.Clear(ctx)
		return nil, ErrNoSession
	}
	return c.refresh(ctx, s)
}

func (c *Client) refresh(ctx context.Context, s *session.Session) (*session.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if cur, err := c.cache.Load(ctx); err == nil && cur != nil && cur.RefreshToken != s.RefreshToken {
		return cur, nil
	}

	var tr *types.TokenResponse
	err := c.call(ctx, "token", "", func(api gotrueapi.Client) (err error) {
		tr, err = api.RefreshToken(s.RefreshToken)
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isSessionRejection(apiErr) {
			c.logger.Info().Int("status", apiErr.Status).Msg("gotrue: refresh rejected, dropping session")
			if clearErr := c.cache.Clear(ctx); clearErr != nil {
				return nil, clearErr
			}
			return nil, ErrNoSession
		}
		return nil, err
	}

	next, err := c.sessionFrom(&tr.Session)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (c *Client) storeSession(ctx context.Context, ts *types.Session) (*fleetAuth.ProviderSession, error) {
	s, err := c.sessionFrom(ts)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Save(ctx, s); err != nil {
		return nil, err
	}
	return &fleetAuth.ProviderSession{UserID: s.UserID, Email: s.Email}, nil
}

// sessionFrom fills identity and expiry from the response body, falling back
// to the access token's claims.
func (c *Client) sessionFrom(ts *types.Session) (*session.Session, error) {
	if ts.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", ErrMalformedResponse)
	}
	claims, err := c.tokens.Parse(ts.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	now := c.now()
	s := &session.Session{
		Email:        ts.User.Email,
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		IssuedAt:     claims.IssuedAtUnix(),
		ExpiresAt:    ts.ExpiresAt,
	}
	if ts.User.ID != uuid.Nil {
		s.UserID = ts.User.ID.String()
	} else {
		s.UserID = claims.Subject
	}
	if s.Email == "" {
		s.Email = claims.Email
	}
	if s.IssuedAt == 0 {
		s.IssuedAt = now.Unix()
	}
	if s.ExpiresAt == 0 && ts.ExpiresIn > 0 {
		s.ExpiresAt = now.Unix() + int64(ts.ExpiresIn)
	}
	if s.ExpiresAt == 0 {
		s.ExpiresAt = claims.ExpiresAtUnix()
	}
	return s, nil
}

// call runs fn against an auth client bound to ctx and bearer, and converts
// the library's status errors into *APIError.
func (c *Client) call(ctx context.Context, op, bearer string, fn func(api gotrueapi.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	api := c.auth.WithClient(http.Client{Transport: contextTransport{ctx: ctx, next: c.transport}})
	if bearer != "" {
		api = api.WithToken(bearer)
	}

	start := c.now()
	err := fn(api)
	ev := c.logger.Debug().Str("op", op).Dur("elapsed", c.now().Sub(start))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("gotrue: request")
	return classify(err)
}

// contextTransport binds requests built without a context to ctx, so
// cancellation and the per-call deadline reach the connection.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(r.WithContext(t.ctx))
}

var _ fleetAuth.IdentityProvider = (*Client)(nil)

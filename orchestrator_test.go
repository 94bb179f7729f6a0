package fleetAuth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/fleetAuth/internal/stores"
	"github.com/MrEthical07/fleetAuth/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "driver@fleet.io"
	testPassword = "Secret#123"
	testUserID   = "user-1"
	testCode     = "123456"
	testVersion  = "1.0.0"
)

type fakeProvider struct {
	mu sync.Mutex

	calls      []string
	authorized map[string]bool
	passwords  map[string]string
	userIDs    map[string]string
	code       string
	session    *ProviderSession

	authErr    error
	sendErr    error
	updateErr  error
	signOutErr error
	sessionErr error

	signInEntered chan struct{}
	signInRelease chan struct{}

	// Set to block only the next call; cleared once entered.
	sessionEntered chan struct{}
	sessionRelease chan struct{}
	sendEntered    chan struct{}
	sendRelease    chan struct{}
}

// hold blocks on release once if entered is set, then clears both.
func (p *fakeProvider) hold(ctx context.Context, entered, release *chan struct{}) error {
	p.mu.Lock()
	in, out := *entered, *release
	*entered, *release = nil, nil
	p.mu.Unlock()
	if in == nil {
		return nil
	}
	close(in)
	select {
	case <-out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		authorized: map[string]bool{testEmail: true},
		passwords:  map[string]string{testEmail: testPassword},
		userIDs:    map[string]string{testEmail: testUserID},
		code:       testCode,
	}
}

func (p *fakeProvider) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakeProvider) count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error) {
	p.record("signin")
	if p.signInEntered != nil {
		close(p.signInEntered)
		select {
		case <-p.signInRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.passwords[email] != password {
		return nil, fmt.Errorf("sign in: %w", ErrProviderInvalidCredentials)
	}
	p.session = &ProviderSession{UserID: p.userIDs[email], Email: email}
	return p.session, nil
}

func (p *fakeProvider) SendOneTimeCode(ctx context.Context, email string) error {
	p.record("send")
	if err := p.hold(ctx, &p.sendEntered, &p.sendRelease); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendErr
}

func (p *fakeProvider) VerifyOneTimeCode(_ context.Context, email, code string) (*ProviderSession, error) {
	p.record("verify")
	p.mu.Lock()
	defer p.mu.Unlock()
	if code != p.code {
		return nil, fmt.Errorf("verify: %w", ErrProviderInvalidCode)
	}
	p.session = &ProviderSession{UserID: p.userIDs[email], Email: email}
	return p.session, nil
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*ProviderSession, error) {
	p.record("session")
	if err := p.hold(ctx, &p.sessionEntered, &p.sessionRelease); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.sessionErr
}

func (p *fakeProvider) UpdatePassword(_ context.Context, newPassword string) error {
	p.record("update")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	if p.session != nil {
		p.passwords[p.session.Email] = newPassword
	}
	return nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.record("signout")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	return p.signOutErr
}

func (p *fakeProvider) IsEmailAuthorized(_ context.Context, email string) (bool, error) {
	p.record("authorized")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorized[email], p.authErr
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) newTicker(time.Duration) ticker {
	t := &fakeTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) latest(t *testing.T) *fakeTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.tickers, "no cooldown ticker started")
	return c.tickers[len(c.tickers)-1]
}

func (c *fakeClock) started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// tick delivers n ticks to the newest ticker.
func (c *fakeClock) tick(t *testing.T, n int) {
	t.Helper()
	tk := c.latest(t)
	for i := 0; i < n; i++ {
		select {
		case tk.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("cooldown task not receiving tick %d", i+1)
		}
	}
}

type testHarness struct {
	o        *Orchestrator
	provider *fakeProvider
	store    *kvstore.Memory
	flags    *stores.FlowState
	clock    *fakeClock
}

func newHarness(t *testing.T, mutate ...func(*Builder)) *testHarness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.App.Version = testVersion

	h := &testHarness{
		provider: newFakeProvider(),
		store:    kvstore.NewMemory(),
		clock:    &fakeClock{},
	}
	h.flags = stores.NewFlowState(h.store)

	b := New().WithConfig(cfg).WithProvider(h.provider).WithLocalStore(h.store)
	for _, m := range mutate {
		m(b)
	}
	o, err := b.Build()
	require.NoError(t, err)
	o.newTicker = h.clock.newTicker
	h.o = o
	t.Cleanup(func() { _ = o.Close() })
	return h
}

// ready runs restore with no provider session.
func (h *testHarness) ready(t *testing.T) {
	t.Helper()
	require.NoError(t, h.o.InitializeAuthState(context.Background()))
	require.True(t, h.o.Snapshot().Ready)
}

func (h *testHarness) pending(t *testing.T) stores.PendingOTP {
	t.Helper()
	p, err := h.flags.PendingOTP(context.Background())
	require.NoError(t, err)
	return p
}

func (h *testHarness) loginToOTP(t *testing.T) {
	t.Helper()
	require.NoError(t, h.o.Login(context.Background(), testEmail, testPassword))
	require.Equal(t, StageAwaitingOTP, h.o.Snapshot().Stage)
}

func TestBuildRequiresProviderAndStore(t *testing.T) {
	_, err := New().WithLocalStore(kvstore.NewMemory()).Build()
	require.Error(t, err)

	_, err = New().WithProvider(newFakeProvider()).Build()
	require.Error(t, err)

	b := New().WithProvider(newFakeProvider()).WithLocalStore(kvstore.NewMemory())
	_, err = b.Build()
	require.NoError(t, err)
	_, err = b.Build()
	require.Error(t, err, "builder is single use")
}

func TestIntentsBeforeRestoreReturnNotReady(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.ErrorIs(t, h.o.Login(ctx, testEmail, testPassword), ErrNotReady)
	require.ErrorIs(t, h.o.ForgotPassword(ctx, testEmail), ErrNotReady)
	require.ErrorIs(t, h.o.VerifyOTP(ctx, testCode), ErrNotReady)
	require.ErrorIs(t, h.o.ResendOTP(ctx), ErrNotReady)
	require.ErrorIs(t, h.o.ChangePassword(ctx, "x", "x"), ErrNotReady)
	require.Zero(t, h.provider.count("signin"))
}

func TestLoginValidationNeverCallsProvider(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	for _, tc := range []struct{ email, password string }{
		{"", testPassword},
		{testEmail, ""},
		{"driver.fleet.io", testPassword},
		{"driver@fleet", testPassword},
	} {
		err := h.o.Login(context.Background(), tc.email, tc.password)
		require.ErrorIs(t, err, ErrValidation, "%q", tc.email)

		s := h.o.Snapshot()
		assert.Equal(t, StageUnauthenticated, s.Stage)
		assert.Equal(t, AlertValidation, s.Alert.Kind)
		assert.True(t, s.Alert.Visible)
		assert.False(t, s.Busy)
	}
	require.Zero(t, h.provider.count("authorized"))
	require.Zero(t, h.provider.count("signin"))
}

func TestLoginAccessDeniedSkipsSignIn(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	err := h.o.Login(context.Background(), "intruder@fleet.io", testPassword)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Zero(t, h.provider.count("signin"))

	s := h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.Equal(t, AlertAccessDenied, s.Alert.Kind)
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricAccessDenied))
}

func TestLoginAllowListUsesNormalizedEmail(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	h.provider.mu.Lock()
	h.provider.passwords["Driver@Fleet.io"] = testPassword
	h.provider.userIDs["Driver@Fleet.io"] = testUserID
	h.provider.mu.Unlock()

	// The allow-list only knows the lower-cased address.
	require.NoError(t, h.o.Login(context.Background(), "  Driver@Fleet.io ", testPassword))
	require.Equal(t, StageAwaitingOTP, h.o.Snapshot().Stage)
}

func TestLoginBadCredentials(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	err := h.o.Login(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	s := h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.Equal(t, AlertAuthenticationFailed, s.Alert.Kind)
	require.False(t, h.pending(t).Pending)
	require.Zero(t, h.provider.count("send"))
}

func TestLoginProviderFailureShowsCause(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.provider.authErr = errors.New("connection refused")

	err := h.o.Login(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, ErrProvider)

	s := h.o.Snapshot()
	require.Equal(t, AlertProviderError, s.Alert.Kind)
	require.Contains(t, s.Alert.Message, "connection refused")
	require.Equal(t, StageUnauthenticated, s.Stage)
}

func TestLoginAlwaysRequiresOTP(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	require.NoError(t, h.flags.RecordFirstLoginCompleted(context.Background(), testUserID))

	h.loginToOTP(t)

	s := h.o.Snapshot()
	assert.True(t, s.ShowTwoFactorAuth)
	assert.False(t, s.IsFirstLogin)
	assert.False(t, s.Authenticated)
	assert.False(t, s.Busy)
	assert.Equal(t, 30, s.ResendCooldownSeconds)
	assert.Equal(t, 1, h.provider.count("send"))

	p := h.pending(t)
	assert.True(t, p.Pending)
	assert.Equal(t, testEmail, p.Email)
}

func TestLoginDispatchFailureStaysAwaitingOTP(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.provider.sendErr = errors.New("smtp down")

	err := h.o.Login(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, ErrProvider)

	s := h.o.Snapshot()
	require.Equal(t, StageAwaitingOTP, s.Stage)
	require.Equal(t, AlertProviderError, s.Alert.Kind)
	require.Zero(t, s.ResendCooldownSeconds)
	require.True(t, s.CanResendOTP())
	require.Zero(t, h.clock.started())
}

func TestFirstLoginOnboarding(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()

	h.loginToOTP(t)
	require.True(t, h.o.Snapshot().IsFirstLogin)

	require.NoError(t, h.o.VerifyOTP(ctx, testCode))
	s := h.o.Snapshot()
	require.Equal(t, StagePasswordChangeRequired, s.Stage)
	require.Equal(t, BranchOnboarding, s.Branch)
	require.True(t, s.ShowPasswordChange)
	require.False(t, s.Authenticated)
	require.True(t, h.pending(t).Pending, "pending OTP stays persisted until the password changes")

	require.ErrorIs(t, h.o.ChangePassword(ctx, "short", "short"), ErrValidation)
	require.Equal(t, AlertValidation, h.o.Snapshot().Alert.Kind)
	require.Zero(t, h.provider.count("update"))

	require.NoError(t, h.o.ChangePassword(ctx, "N3w#Password", "N3w#Password"))
	s = h.o.Snapshot()
	require.Equal(t, StageAuthenticated, s.Stage)
	require.True(t, s.Authenticated)
	require.Equal(t, Inputs{}, s.Inputs)
	require.False(t, h.pending(t).Pending)

	done, err := h.flags.FirstLoginCompleted(ctx, testUserID)
	require.NoError(t, err)
	require.True(t, done)
}

func TestReturningUserAuthenticatesAfterOTP(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()
	require.NoError(t, h.flags.RecordFirstLoginCompleted(ctx, testUserID))

	h.loginToOTP(t)
	for i, d := range testCode {
		require.NoError(t, h.o.SetOTPDigit(i, string(d)))
	}
	require.NoError(t, h.o.VerifyOTP(ctx, ""))

	s := h.o.Snapshot()
	require.Equal(t, StageAuthenticated, s.Stage)
	require.True(t, s.Authenticated)
	require.Zero(t, s.ResendCooldownSeconds)
	require.False(t, h.pending(t).Pending)
	require.Eventually(t, h.clock.latest(t).isStopped, time.Second, 5*time.Millisecond)
}

func TestVerifyOTPFailures(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.loginToOTP(t)

	require.ErrorIs(t, h.o.VerifyOTP(ctx, "12345"), ErrValidation)
	require.ErrorIs(t, h.o.VerifyOTP(ctx, "12a456"), ErrValidation)
	require.Zero(t, h.provider.count("verify"))

	require.ErrorIs(t, h.o.VerifyOTP(ctx, "654321"), ErrOTPInvalid)
	s := h.o.Snapshot()
	require.Equal(t, StageAwaitingOTP, s.Stage)
	require.Equal(t, AlertOTPInvalid, s.Alert.Kind)
	require.True(t, h.pending(t).Pending)
}

func TestResendOTPRespectsCooldown(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.loginToOTP(t)

	require.NoError(t, h.o.ResendOTP(ctx))
	require.Equal(t, 1, h.provider.count("send"), "resend during cooldown is a no-op")
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricOTPResendSuppressed))

	h.clock.tick(t, 29)
	require.Eventually(t, func() bool { return h.o.Snapshot().ResendCooldownSeconds == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.o.ResendOTP(ctx))
	require.Equal(t, 1, h.provider.count("send"))

	h.clock.tick(t, 1)
	require.Eventually(t, func() bool { return h.o.Snapshot().CanResendOTP() }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.o.ResendOTP(ctx))
	require.Equal(t, 2, h.provider.count("send"))
	require.Equal(t, 30, h.o.Snapshot().ResendCooldownSeconds)
	require.Equal(t, 2, h.clock.started())
}

func TestCooldownNeverNegative(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.loginToOTP(t)

	tk := h.clock.latest(t)
	h.clock.tick(t, 30)
	require.Eventually(t, tk.isStopped, time.Second, 5*time.Millisecond)

	// The task has exited; a stray tick must not be consumed.
	select {
	case tk.ch <- time.Now():
		t.Fatal("cooldown task still running at zero")
	case <-time.After(20 * time.Millisecond):
	}
	require.Zero(t, h.o.Snapshot().ResendCooldownSeconds)
}

func TestForgotPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()

	require.NoError(t, h.o.ForgotPassword(ctx, " Driver@Fleet.io "))
	s := h.o.Snapshot()
	require.Equal(t, StageAwaitingOTP, s.Stage)
	require.Equal(t, BranchReset, s.Branch)
	require.True(t, s.IsPasswordResetFlow)
	require.Equal(t, 30, s.ResendCooldownSeconds)

	rf, ok, err := h.flags.ResetFlow(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rf.Active)
	require.Equal(t, testEmail, rf.Email)
	require.True(t, h.pending(t).Pending)

	require.NoError(t, h.o.VerifyOTP(ctx, testCode))
	s = h.o.Snapshot()
	require.Equal(t, StagePasswordChangeRequired, s.Stage)
	require.Equal(t, BranchReset, s.Branch)

	require.NoError(t, h.o.ChangePassword(ctx, "N3w#Password", "N3w#Password"))
	s = h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.False(t, s.Authenticated)
	require.Equal(t, AlertNotice, s.Alert.Kind)
	require.NotEmpty(t, s.Alert.Message)
	require.Equal(t, 1, h.provider.count("signout"))

	_, ok, err = h.flags.ResetFlow(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, h.pending(t).Pending)

	h.o.DismissAlert()
	require.False(t, h.o.Snapshot().Alert.Visible)
}

func TestForgotPasswordFailures(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()

	require.ErrorIs(t, h.o.ForgotPassword(ctx, "not-an-email"), ErrValidation)
	require.ErrorIs(t, h.o.ForgotPassword(ctx, "intruder@fleet.io"), ErrAccessDenied)

	h.provider.sendErr = errors.New("rate limited")
	require.ErrorIs(t, h.o.ForgotPassword(ctx, testEmail), ErrProvider)

	s := h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.Equal(t, AlertProviderError, s.Alert.Kind)
	_, ok, err := h.flags.ResetFlow(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWrongStageIntentsAreRejected(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()

	require.ErrorIs(t, h.o.VerifyOTP(ctx, testCode), ErrInvalidTransition)
	require.ErrorIs(t, h.o.ChangePassword(ctx, "N3w#Password", "N3w#Password"), ErrInvalidTransition)

	h.loginToOTP(t)
	require.ErrorIs(t, h.o.Login(ctx, testEmail, testPassword), ErrInvalidTransition)
}

func TestSignOutClearsStateAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.loginToOTP(t)
	tk := h.clock.latest(t)

	require.NoError(t, h.o.SignOut(ctx))
	s := h.o.Snapshot()
	require.Equal(t, StageSignedOut, s.Stage)
	require.False(t, s.Authenticated)
	require.Zero(t, s.ResendCooldownSeconds)
	require.Equal(t, Inputs{}, s.Inputs)
	require.False(t, h.pending(t).Pending)
	require.Eventually(t, tk.isStopped, time.Second, 5*time.Millisecond)

	h.provider.signOutErr = errors.New("offline")
	require.NoError(t, h.o.SignOut(ctx))
	require.Equal(t, StageSignedOut, h.o.Snapshot().Stage)

	// Signed out users can log in again.
	h.loginToOTP(t)
}

func TestSignOutDiscardsInFlightLogin(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.provider.signInEntered = make(chan struct{})
	h.provider.signInRelease = make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		errc <- h.o.Login(context.Background(), testEmail, testPassword)
	}()
	<-h.provider.signInEntered

	require.ErrorIs(t, h.o.Login(context.Background(), testEmail, testPassword), ErrBusy)
	require.True(t, h.o.Snapshot().Busy)

	require.NoError(t, h.o.SignOut(context.Background()))
	close(h.provider.signInRelease)

	require.ErrorIs(t, <-errc, ErrSuperseded)
	s := h.o.Snapshot()
	require.Equal(t, StageSignedOut, s.Stage)
	require.False(t, s.Busy)
	require.False(t, h.pending(t).Pending)
	require.Zero(t, h.provider.count("send"))
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricStaleCompletionDiscarded))
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricBusyRejected))
}

func TestRestoreNoSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.o.InitializeAuthState(context.Background()))

	s := h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.True(t, s.Ready)
	require.False(t, s.Busy)

	v, ok, err := h.flags.InstalledVersion(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testVersion, v)
	launched, err := h.flags.PreviouslyLaunched(context.Background())
	require.NoError(t, err)
	require.True(t, launched)

	// Restore runs once.
	require.NoError(t, h.o.InitializeAuthState(context.Background()))
	require.Equal(t, 1, h.provider.count("session"))
}

func TestRestoreReinstallForcesSignOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.flags.SetInstalledVersion(ctx, "0.9.0"))
	require.NoError(t, h.flags.MarkLaunched(ctx))
	require.NoError(t, h.flags.SetPendingOTP(ctx, testEmail))
	h.provider.session = &ProviderSession{UserID: testUserID, Email: testEmail}

	require.NoError(t, h.o.InitializeAuthState(ctx))

	s := h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.False(t, s.Authenticated)
	require.False(t, s.Busy)
	require.Equal(t, 1, h.provider.count("signout"))
	require.Zero(t, h.provider.count("session"), "reinstall short-circuits before the session check")
	require.False(t, h.pending(t).Pending)

	v, _, err := h.flags.InstalledVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, testVersion, v)
}

func TestRestoreFirstLaunchInvalidatesSession(t *testing.T) {
	h := newHarness(t)
	h.provider.session = &ProviderSession{UserID: testUserID, Email: testEmail}

	require.NoError(t, h.o.InitializeAuthState(context.Background()))

	require.Equal(t, StageUnauthenticated, h.o.Snapshot().Stage)
	require.Equal(t, 1, h.provider.count("signout"))
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricRestoreFirstLaunch))
}

func TestRestoreCorruptPendingOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.flags.MarkLaunched(ctx))
	require.NoError(t, h.store.Set(ctx, stores.KeyPendingOTP, []byte{1}))
	h.provider.session = &ProviderSession{UserID: testUserID, Email: testEmail}

	require.NoError(t, h.o.InitializeAuthState(ctx))

	s := h.o.Snapshot()
	require.Equal(t, StageUnauthenticated, s.Stage)
	require.False(t, s.Alert.Visible, "corrupt state is never surfaced")
	require.Equal(t, 1, h.provider.count("signout"))
	require.False(t, h.pending(t).Pending)
}

func TestRestoreResumesPendingOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.flags.MarkLaunched(ctx))
	require.NoError(t, h.flags.SetPendingOTP(ctx, testEmail))
	h.provider.session = &ProviderSession{UserID: testUserID, Email: testEmail}

	require.NoError(t, h.o.InitializeAuthState(ctx))

	s := h.o.Snapshot()
	require.Equal(t, StageAwaitingOTP, s.Stage)
	require.True(t, s.IsFirstLogin)
	require.Equal(t, testEmail, s.Inputs.Email)
	require.True(t, s.CanResendOTP())

	require.NoError(t, h.o.VerifyOTP(ctx, testCode))
	require.Equal(t, BranchOnboarding, h.o.Snapshot().Branch)
}

func TestRestoreAuthenticated(t *testing.T) {
	var changes []bool
	var mu sync.Mutex
	session := NewAppSession(func(v bool) {
		mu.Lock()
		changes = append(changes, v)
		mu.Unlock()
	})
	h := newHarness(t, func(b *Builder) { b.WithSessionState(session) })
	ctx := context.Background()
	require.NoError(t, h.flags.MarkLaunched(ctx))
	h.provider.session = &ProviderSession{UserID: testUserID, Email: testEmail}

	require.NoError(t, h.o.InitializeAuthState(ctx))

	require.Equal(t, StageAuthenticated, h.o.Snapshot().Stage)
	require.True(t, session.Authenticated())
	mu.Lock()
	require.Equal(t, []bool{true}, changes)
	mu.Unlock()
}

func TestStoreWriteFailureDoesNotFailIntent(t *testing.T) {
	store := &failingStore{Memory: kvstore.NewMemory()}
	h := newHarness(t, func(b *Builder) { b.WithLocalStore(store) })
	h.ready(t)

	store.fail.Store(true)
	h.loginToOTP(t)
	require.NotZero(t, h.o.Metrics().Value(MetricStoreWriteFailure))
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.o.Subscribe(64)
	defer cancel()

	first := <-ch
	require.False(t, first.Ready)

	h.ready(t)
	require.Eventually(t, func() bool {
		for {
			select {
			case s := <-ch:
				if s.Ready && !s.Busy {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)

	cancel()
	for range ch {
	}
	cancel()
}

func TestCloseStopsCooldownAndSubscribers(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.loginToOTP(t)
	tk := h.clock.latest(t)
	ch, _ := h.o.Subscribe(1)

	require.NoError(t, h.o.Close())
	require.True(t, tk.isStopped())
	for range ch {
	}

	require.ErrorIs(t, h.o.Login(context.Background(), testEmail, testPassword), ErrClosed)
	require.ErrorIs(t, h.o.InitializeAuthState(context.Background()), ErrClosed)
	require.NoError(t, h.o.Close())
}

func TestAuditEventsCarryFlowID(t *testing.T) {
	sink := NewChannelSink(16)
	h := newHarness(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.App.Version = testVersion
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	h.ready(t)

	ctx := WithFlowID(context.Background(), "flow-42")
	require.ErrorIs(t, h.o.Login(ctx, "intruder@fleet.io", testPassword), ErrAccessDenied)
	require.NoError(t, h.o.Close())

	var got []AuditEvent
	for {
		select {
		case e := <-sink.Events():
			got = append(got, e)
			continue
		default:
		}
		break
	}
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.Equal(t, auditEventAccessDenied, last.EventType)
	require.Equal(t, "flow-42", last.FlowID)
	require.Equal(t, string(auditErrAccessDenied), last.Error)
	require.False(t, last.Timestamp.IsZero())
}

func TestSetOTPDigitValidates(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.o.SetOTPDigit(-1, "1"), ErrValidation)
	require.ErrorIs(t, h.o.SetOTPDigit(OTPCodeLength, "1"), ErrValidation)
	require.ErrorIs(t, h.o.SetOTPDigit(0, "a"), ErrValidation)
	require.ErrorIs(t, h.o.SetOTPDigit(0, "12"), ErrValidation)

	require.NoError(t, h.o.SetOTPDigit(0, "7"))
	require.Equal(t, "7", h.o.Snapshot().Inputs.OTPCode())
	h.o.ClearOTPDigits()
	require.Empty(t, h.o.Snapshot().Inputs.OTPCode())
}

func TestSignOutDuringRestoreKeepsLifecycleMarkers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entered, release := make(chan struct{}), make(chan struct{})
	h.provider.sessionEntered, h.provider.sessionRelease = entered, release

	errc := make(chan error, 1)
	go func() { errc <- h.o.InitializeAuthState(ctx) }()
	<-entered

	require.NoError(t, h.o.SignOut(ctx))
	close(release)
	require.NoError(t, <-errc)
	require.True(t, h.o.Snapshot().Ready)
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricStaleCompletionDiscarded))

	launched, err := h.flags.PreviouslyLaunched(ctx)
	require.NoError(t, err)
	require.True(t, launched)

	// A returning user signs in, then the app restarts on the same store.
	require.NoError(t, h.flags.RecordFirstLoginCompleted(ctx, testUserID))
	h.loginToOTP(t)
	require.NoError(t, h.o.VerifyOTP(ctx, testCode))
	require.Equal(t, StageAuthenticated, h.o.Snapshot().Stage)

	cfg := DefaultConfig()
	cfg.App.Version = testVersion
	next, err := New().WithConfig(cfg).WithProvider(h.provider).WithLocalStore(h.store).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = next.Close() })
	next.newTicker = h.clock.newTicker

	require.NoError(t, next.InitializeAuthState(ctx))
	s := next.Snapshot()
	require.Equal(t, StageAuthenticated, s.Stage)
	require.True(t, s.Authenticated)
	require.Equal(t, 1, h.provider.count("signout"), "only the explicit sign-out reached the provider")
}

func TestCloseDuringRestoreSkipsLifecycleMarkers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entered, release := make(chan struct{}), make(chan struct{})
	h.provider.sessionEntered, h.provider.sessionRelease = entered, release

	errc := make(chan error, 1)
	go func() { errc <- h.o.InitializeAuthState(ctx) }()
	<-entered

	require.NoError(t, h.o.Close())
	close(release)
	require.NoError(t, <-errc)
	require.False(t, h.o.Snapshot().Ready)

	launched, err := h.flags.PreviouslyLaunched(ctx)
	require.NoError(t, err)
	require.False(t, launched)
}

func TestRestoreCorruptStateIsAudited(t *testing.T) {
	sink := NewChannelSink(16)
	h := newHarness(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.App.Version = testVersion
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	ctx := context.Background()
	require.NoError(t, h.flags.MarkLaunched(ctx))
	require.NoError(t, h.store.Set(ctx, stores.KeyPendingOTP, []byte{1}))
	h.provider.session = &ProviderSession{UserID: testUserID, Email: testEmail}

	require.NoError(t, h.o.InitializeAuthState(ctx))
	require.NoError(t, h.o.Close())

	var invalidated []AuditEvent
	for {
		select {
		case e := <-sink.Events():
			if e.EventType == auditEventSessionInvalidated {
				invalidated = append(invalidated, e)
			}
			continue
		default:
		}
		break
	}
	require.Len(t, invalidated, 1)
	require.Equal(t, string(auditErrCorruptState), invalidated[0].Error)
	require.Equal(t, testUserID, invalidated[0].UserID)
	require.Equal(t, "corrupt_pending_otp", invalidated[0].Metadata["reason"])
}

func TestNewerDispatchSupersedesOlderOne(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	ctx := context.Background()
	entered, release := make(chan struct{}), make(chan struct{})
	h.provider.sendEntered, h.provider.sendRelease = entered, release

	errc := make(chan error, 1)
	go func() { errc <- h.o.Login(ctx, testEmail, testPassword) }()
	<-entered

	// The busy gate keeps a second send from starting through the API, so
	// start one directly while the first is still in flight.
	h.o.mu.Lock()
	resend := h.o.captureLocked(ctx, opResendOTP)
	h.o.mu.Unlock()
	require.NoError(t, h.o.dispatchOTP(resend))
	require.False(t, h.o.Snapshot().Busy)
	require.Equal(t, int(h.o.config.OTP.ResendCooldown/time.Second), h.o.Snapshot().ResendCooldownSeconds)

	close(release)
	require.ErrorIs(t, <-errc, ErrSuperseded)
	s := h.o.Snapshot()
	require.Equal(t, StageAwaitingOTP, s.Stage)
	require.False(t, s.Busy)
	require.Equal(t, 2, h.provider.count("send"))
	require.EqualValues(t, 1, h.o.Metrics().Value(MetricStaleCompletionDiscarded))
}

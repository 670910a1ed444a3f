package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-auth/auth"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
	fakesessionrepo "github.com/jrsteele09/go-session-auth/sessions/repofake"
	"github.com/jrsteele09/go-session-auth/store"
	"github.com/jrsteele09/go-session-auth/token"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	blacklistrepofake "github.com/jrsteele09/go-session-auth/token/blacklist/repofake"
	"github.com/jrsteele09/go-session-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-session-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testPassword   = "Secret123"
	testRefreshTTL = 24 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *recordingObserver) ObserveFlow(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[op] = append(o.outcomes[op], outcome)
}

// failingBlacklist simulates an unreachable blacklist store.
type failingBlacklist struct{}

func (failingBlacklist) Contains(context.Context, string) (bool, error) {
	return false, apperrors.Unavailable(errors.New("connection refused"))
}

func (failingBlacklist) Add(context.Context, string, time.Time) (bool, error) {
	return false, apperrors.Unavailable(errors.New("connection refused"))
}

func (failingBlacklist) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type testFixture struct {
	clock     *fakeClock
	users     *fakeuserrepo.FakeUserRepo
	sessions  *fakesessionrepo.FakeSessionRepo
	blacklist *blacklistrepofake.FakeBlacklistRepo
	tokens    *token.Manager
	observer  *recordingObserver
	flow      *auth.Flow
	alice     *users.User
	bob       *users.User
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	return setupTestFixtureWithBlacklist(t, nil)
}

func setupTestFixtureWithBlacklist(t *testing.T, bl blacklist.Repo) *testFixture {
	t.Helper()

	f := &testFixture{
		clock:     &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		users:     fakeuserrepo.NewFakeUserRepo(),
		sessions:  fakesessionrepo.NewFakeSessionRepo(),
		blacklist: blacklistrepofake.NewFakeBlacklistRepo(),
		observer:  &recordingObserver{outcomes: make(map[string][]string)},
	}
	if bl == nil {
		bl = f.blacklist
	}

	codec, err := token.NewCodec("access-secret", "refresh-secret", token.WithCodecNowFunc(f.clock.Now))
	require.NoError(t, err)
	f.tokens = token.New(codec, bl,
		token.WithNowFunc(f.clock.Now),
		token.WithTokenExpiry(10*time.Minute, testRefreshTTL),
	)
	sessionManager := sessions.NewManager(f.sessions, testRefreshTTL, sessions.WithNowFunc(f.clock.Now))

	f.flow, err = auth.NewFlow(auth.Deps{
		Users:    f.users,
		Verifier: users.NewVerifier(f.users),
		Sessions: sessionManager,
		Tokens:   f.tokens,
		Tx:       store.NoTx{},
	}, auth.WithObserver(f.observer))
	require.NoError(t, err)

	f.alice = f.createUser(t, "alice@example.com", "alice", true)
	f.bob = f.createUser(t, "bob@example.com", "bob", true)
	return f
}

func (f *testFixture) createUser(t *testing.T, email, login string, confirmed bool) *users.User {
	t.Helper()
	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	u := &users.User{Email: email, Login: login, PasswordHash: hash, Confirmed: confirmed}
	require.NoError(t, f.users.Upsert(context.Background(), u))
	return u
}

func (f *testFixture) login(t *testing.T, loginOrEmail, userAgent string) auth.TokenPair {
	t.Helper()
	pair, err := f.flow.Login(context.Background(),
		auth.LoginInput{LoginOrEmail: loginOrEmail, Password: testPassword},
		auth.ClientInfo{IP: "10.0.0.1", UserAgent: userAgent},
	)
	require.NoError(t, err)
	return pair
}

func (f *testFixture) deviceOf(t *testing.T, refreshToken string) string {
	t.Helper()
	res := f.tokens.RefreshPayload(refreshToken)
	require.True(t, res.Valid())
	return res.Payload.DeviceID
}

func TestNewFlow_RequiresDeps(t *testing.T) {
	_, err := auth.NewFlow(auth.Deps{})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	pair := f.login(t, "alice", "Firefox")
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, f.clock.Now().Add(testRefreshTTL), pair.RefreshExpiresAt)

	access, err := f.tokens.AccessPayload(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.alice.ID, access.ID)
	require.Equal(t, f.alice.Email, access.Email)
	require.Equal(t, f.alice.Login, access.Login)

	deviceID := f.deviceOf(t, pair.RefreshToken)
	session, err := f.sessions.Get(context.Background(), deviceID)
	require.NoError(t, err)
	require.Equal(t, f.alice.ID, session.UserID)
	require.Equal(t, "Firefox", session.UserAgentTitle)
	require.Equal(t, "10.0.0.1", session.IP)
}

func TestLogin_ByEmailCreatesSeparateSessions(t *testing.T) {
	f := setupTestFixture(t)

	first := f.login(t, "alice@example.com", "Firefox")
	second := f.login(t, "ALICE@example.com", "Safari")
	require.NotEqual(t, f.deviceOf(t, first.RefreshToken), f.deviceOf(t, second.RefreshToken))
	require.Equal(t, 2, f.sessions.Len())
}

func TestLogin_Rejected(t *testing.T) {
	f := setupTestFixture(t)
	f.createUser(t, "carol@example.com", "carol", false)
	ctx := context.Background()

	_, err := f.flow.Login(ctx, auth.LoginInput{LoginOrEmail: "alice", Password: "Wrong1234"}, auth.ClientInfo{})
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = f.flow.Login(ctx, auth.LoginInput{LoginOrEmail: "nobody", Password: testPassword}, auth.ClientInfo{})
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = f.flow.Login(ctx, auth.LoginInput{LoginOrEmail: "carol", Password: testPassword}, auth.ClientInfo{})
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.ErrorIs(t, err, apperrors.ErrUserNotConfirmed)

	_, err = f.flow.Login(ctx, auth.LoginInput{LoginOrEmail: "  ", Password: ""}, auth.ClientInfo{})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.Zero(t, f.sessions.Len())
}

func TestRefresh_RotatesWithinSameSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")
	deviceID := f.deviceOf(t, pair.RefreshToken)
	before, err := f.sessions.Get(ctx, deviceID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	next, err := f.flow.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.Equal(t, deviceID, f.deviceOf(t, next.RefreshToken))

	after, err := f.sessions.Get(ctx, deviceID)
	require.NoError(t, err)
	require.True(t, after.LastActiveAt.After(before.LastActiveAt))
	require.Equal(t, after.LastActiveAt.Add(testRefreshTTL), after.ExpiresAt)
	require.Equal(t, 1, f.sessions.Len())

	blacklisted, err := f.tokens.IsBlacklisted(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, blacklisted)

	_, err = f.flow.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = f.flow.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_FrozenClock(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")
	for range 3 {
		next, err := f.flow.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		pair = next
	}
}

func TestRefresh_ConcurrentSameTokenHasOneWinner(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.login(t, "alice", "Firefox")

	const callers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.flow.Refresh(context.Background(), pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if apperrors.Is(err, apperrors.ErrUnauthenticated) {
				losers++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, winners)
	require.Equal(t, callers-1, losers)
}

func TestRefresh_ExpiredTokenMutatesNothing(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")
	deviceID := f.deviceOf(t, pair.RefreshToken)
	before, err := f.sessions.Get(ctx, deviceID)
	require.NoError(t, err)

	f.clock.Advance(testRefreshTTL + time.Second)
	_, err = f.flow.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.ErrorIs(t, err, token.ErrExpired)

	after, err := f.sessions.Get(ctx, deviceID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, f.blacklist.Len())
}

func TestRefresh_Rejected(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.flow.Refresh(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = f.flow.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	pair := f.login(t, "alice", "Firefox")
	_, err = f.flow.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	require.NoError(t, f.tokens.Blacklist(ctx, pair.RefreshToken))
	_, err = f.flow.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
}

func TestRefresh_TerminatedSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	current := f.login(t, "alice", "Firefox")
	other := f.login(t, "alice", "Safari")

	require.NoError(t, f.flow.TerminateOthers(ctx, current.RefreshToken))

	_, err := f.flow.Refresh(ctx, other.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestRefresh_DeletedUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")

	// Re-registering the address under a new id must not inherit the old session.
	f.alice.Email = "alice-old@example.com"
	require.NoError(t, f.users.Upsert(ctx, f.alice))
	f.createUser(t, "alice@example.com", "alice2", true)

	_, err := f.flow.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestRefresh_StoreUnavailable(t *testing.T) {
	f := setupTestFixtureWithBlacklist(t, failingBlacklist{})
	pair := f.login(t, "alice", "Firefox")

	_, err := f.flow.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	require.NotErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")
	keep := f.login(t, "alice", "Safari")

	require.NoError(t, f.flow.Logout(ctx, pair.RefreshToken))

	_, err := f.sessions.Get(ctx, f.deviceOf(t, pair.RefreshToken))
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	_, err = f.sessions.Get(ctx, f.deviceOf(t, keep.RefreshToken))
	require.NoError(t, err)

	require.ErrorIs(t, f.flow.Logout(ctx, pair.RefreshToken), apperrors.ErrUnauthenticated)
	_, err = f.flow.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestWhoAmI(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")
	me, err := f.flow.WhoAmI(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, auth.Me{Email: "alice@example.com", Login: "alice", UserID: f.alice.ID}, me)

	_, err = f.flow.WhoAmI(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	f.clock.Advance(11 * time.Minute)
	_, err = f.flow.WhoAmI(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestDevices(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.login(t, "alice", "Firefox")
	f.clock.Advance(time.Minute)
	second := f.login(t, "alice", "Safari")
	f.login(t, "bob", "Chrome")

	devices, err := f.flow.Devices(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Equal(t, f.deviceOf(t, second.RefreshToken), devices[0].DeviceID)
	require.Equal(t, "Safari", devices[0].Title)
	require.Equal(t, f.deviceOf(t, first.RefreshToken), devices[1].DeviceID)
	require.Equal(t, "10.0.0.1", devices[1].IP)
	require.Equal(t, f.clock.Now(), devices[0].LastActiveDate)

	_, err = f.flow.Devices(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestTerminateOthers(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	d1 := f.login(t, "alice", "Firefox")
	f.login(t, "alice", "Safari")
	f.login(t, "alice", "Edge")
	bobs := f.login(t, "bob", "Chrome")

	require.NoError(t, f.flow.TerminateOthers(ctx, d1.RefreshToken))

	devices, err := f.flow.Devices(ctx, d1.RefreshToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, f.deviceOf(t, d1.RefreshToken), devices[0].DeviceID)

	_, err = f.sessions.Get(ctx, f.deviceOf(t, bobs.RefreshToken))
	require.NoError(t, err)
}

func TestTerminateDevice(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	current := f.login(t, "alice", "Firefox")
	other := f.login(t, "alice", "Safari")

	require.NoError(t, f.flow.TerminateDevice(ctx, current.RefreshToken, f.deviceOf(t, other.RefreshToken)))
	_, err := f.sessions.Get(ctx, f.deviceOf(t, other.RefreshToken))
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	err = f.flow.TerminateDevice(ctx, current.RefreshToken, "no-such-device")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.flow.TerminateDevice(ctx, current.RefreshToken, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.flow.TerminateDevice(ctx, current.RefreshToken, strings.Repeat("d", 129))
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.flow.TerminateDevice(ctx, "", f.deviceOf(t, current.RefreshToken))
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestTerminateDevice_AuthenticatesBeforeCheckingDeviceID(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	err := f.flow.TerminateDevice(ctx, "", strings.Repeat("d", 129))
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	err = f.flow.TerminateDevice(ctx, "", "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestTerminateDevice_ForeignDeviceIsForbidden(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	alices := f.login(t, "alice", "Firefox")
	bobs := f.login(t, "bob", "Chrome")
	bobDevice := f.deviceOf(t, bobs.RefreshToken)
	before, err := f.sessions.Get(ctx, bobDevice)
	require.NoError(t, err)

	err = f.flow.TerminateDevice(ctx, alices.RefreshToken, bobDevice)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	after, err := f.sessions.Get(ctx, bobDevice)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestObserverOutcomes(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair := f.login(t, "alice", "Firefox")
	_, err := f.flow.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = f.flow.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)

	require.Equal(t, []string{auth.OutcomeOK}, f.observer.outcomes["login"])
	require.Equal(t, []string{auth.OutcomeOK, auth.OutcomeUnauthenticated}, f.observer.outcomes["refresh"])
}

func TestOutcome(t *testing.T) {
	require.Equal(t, auth.OutcomeOK, auth.Outcome(nil))
	require.Equal(t, auth.OutcomeUnavailable, auth.Outcome(apperrors.Unavailable(errors.New("down"))))
	require.Equal(t, auth.OutcomeForbidden, auth.Outcome(apperrors.ErrForbidden))
	require.Equal(t, auth.OutcomeNotFound, auth.Outcome(apperrors.ErrNotFound))
	require.Equal(t, auth.OutcomeInvalid, auth.Outcome(apperrors.ErrInvalidInput))
	require.Equal(t, auth.OutcomeError, auth.Outcome(errors.New("boom")))
	require.Equal(t, auth.OutcomeReused, auth.Outcome(token.ErrTokenReused))
}

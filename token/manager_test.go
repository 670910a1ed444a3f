package token_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
	"github.com/jrsteele09/go-session-auth/token"
	blacklistrepofake "github.com/jrsteele09/go-session-auth/token/blacklist/repofake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	now       time.Time
	blacklist *blacklistrepofake.FakeBlacklistRepo
	manager   *token.Manager
	subject   token.Subject
	session   *sessions.Session
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:       fixedNow(),
		blacklist: blacklistrepofake.NewFakeBlacklistRepo(),
		subject:   token.Subject{ID: "user-1", Email: "alice@example.com", Login: "alice"},
	}
	f.manager = f.newManager(t, f.now)
	f.session = &sessions.Session{
		UserID:         f.subject.ID,
		DeviceID:       "device-1",
		IP:             "10.0.0.1",
		UserAgentTitle: "test-agent",
		LastActiveAt:   f.now,
		ExpiresAt:      f.now.Add(24 * time.Hour),
	}
	return f
}

func (f *testFixture) newManager(t *testing.T, at time.Time) *token.Manager {
	t.Helper()
	clock := func() time.Time { return at }
	return token.New(newTestCodec(t, clock), f.blacklist,
		token.WithNowFunc(clock),
		token.WithTokenExpiry(10*time.Minute, 24*time.Hour),
	)
}

func TestManager_AccessToken(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.manager.GenerateAccessToken(f.subject)
	require.NoError(t, err)

	payload, err := f.manager.AccessPayload(raw)
	require.NoError(t, err)
	require.Equal(t, token.AccessTokenPayload{ID: "user-1", Email: "alice@example.com", Login: "alice"}, payload)

	claims, err := newTestCodec(t, fixedNow).Decode(token.KindAccess, raw)
	require.NoError(t, err)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.Equal(t, f.now.Add(10*time.Minute).Unix(), exp.Unix())
}

func TestManager_AccessTokenFailures(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.manager.GenerateAccessToken(f.subject)
	require.NoError(t, err)

	expired := f.newManager(t, f.now.Add(11*time.Minute))
	_, err = expired.AccessPayload(raw)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = f.manager.AccessPayload("garbage")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	refresh, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)
	_, err = f.manager.AccessPayload(refresh)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestManager_AccessTokensAreUnique(t *testing.T) {
	f := setupTestFixture(t)

	a, err := f.manager.GenerateAccessToken(f.subject)
	require.NoError(t, err)
	b, err := f.manager.GenerateAccessToken(f.subject)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestManager_RefreshToken(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)

	res := f.manager.RefreshPayload(raw)
	require.True(t, res.Valid())
	require.Equal(t, "user-1", res.Payload.ID)
	require.Equal(t, "alice@example.com", res.Payload.Email)
	require.Equal(t, "device-1", res.Payload.DeviceID)
	require.NotEmpty(t, res.Payload.TokenID)
	require.Equal(t, f.session.LastActiveAt.Unix(), res.Payload.IssuedAt.Unix())
	require.Equal(t, f.session.ExpiresAt.Unix(), res.Payload.ExpiresAt.Unix())
}

func TestManager_RefreshTokenRequiresLiveSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.GenerateRefreshToken(f.subject, nil)
	require.Error(t, err)

	expired := *f.session
	expired.ExpiresAt = f.now
	_, err = f.manager.GenerateRefreshToken(f.subject, &expired)
	require.Error(t, err)
}

func TestManager_RefreshPayloadRejects(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)

	later := f.newManager(t, f.session.ExpiresAt.Add(time.Second))
	res := later.RefreshPayload(raw)
	require.False(t, res.Valid())
	require.ErrorIs(t, res.Err, token.ErrExpired)

	access, err := f.manager.GenerateAccessToken(f.subject)
	require.NoError(t, err)
	res = f.manager.RefreshPayload(access)
	require.False(t, res.Valid())
	require.ErrorIs(t, res.Err, token.ErrInvalidSignature)

	res = f.manager.RefreshPayload("")
	require.False(t, res.Valid())
	require.ErrorIs(t, res.Err, token.ErrMalformed)
}

func TestManager_Blacklist(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)

	found, err := f.manager.IsBlacklisted(ctx, raw)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, f.manager.Blacklist(ctx, raw))
	require.NoError(t, f.manager.Blacklist(ctx, raw))
	require.Equal(t, 1, f.blacklist.Len())

	found, err = f.manager.IsBlacklisted(ctx, raw)
	require.NoError(t, err)
	require.True(t, found)

	// A blacklisted token still decodes; revocation is checked separately.
	require.True(t, f.manager.RefreshPayload(raw).Valid())
}

func TestManager_ClaimRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)

	require.NoError(t, f.manager.ClaimRefreshToken(ctx, raw, time.Time{}))
	require.ErrorIs(t, f.manager.ClaimRefreshToken(ctx, raw, time.Time{}), token.ErrTokenReused)

	found, err := f.manager.IsBlacklisted(ctx, raw)
	require.NoError(t, err)
	require.True(t, found)
}

func TestManager_ClaimRefreshTokenConcurrent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)

	const callers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		reused  atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := f.manager.ClaimRefreshToken(ctx, raw, f.session.ExpiresAt); {
			case err == nil:
				winners.Add(1)
			case apperrors.Is(err, token.ErrTokenReused):
				reused.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
	require.Equal(t, int32(callers-1), reused.Load())
}

func TestManager_PurgeBlacklist(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.manager.GenerateRefreshToken(f.subject, f.session)
	require.NoError(t, err)
	require.NoError(t, f.manager.Blacklist(ctx, raw))

	n, err := f.manager.PurgeBlacklist(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	later := f.newManager(t, f.session.ExpiresAt)
	n, err = later.PurgeBlacklist(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Zero(t, f.blacklist.Len())
}

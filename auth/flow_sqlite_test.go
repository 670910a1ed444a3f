package auth_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-auth/auth"
	"github.com/jrsteele09/go-session-auth/sessions"
	"github.com/jrsteele09/go-session-auth/store/sqlite"
	"github.com/jrsteele09/go-session-auth/token"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	"github.com/jrsteele09/go-session-auth/users"
	"github.com/stretchr/testify/require"
)

// cancelOnAdd cancels the caller's request context the moment the refresh
// token is claimed, as a client hanging up mid-rotation would.
type cancelOnAdd struct {
	blacklist.Repo
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelOnAdd) Add(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	c.once.Do(c.cancel)
	return c.Repo.Add(ctx, tokenHash, expiresAt)
}

func TestRefresh_ClientDisconnectStillCommits(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db, "up"))

	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	userRepo := sqlite.NewUserRepo(db)
	sessionRepo := sqlite.NewSessionRepo(db)
	blacklistRepo := sqlite.NewBlacklistRepo(db)

	codec, err := token.NewCodec("access-secret", "refresh-secret", token.WithCodecNowFunc(clock.Now))
	require.NoError(t, err)
	tokens := token.New(codec, &cancelOnAdd{Repo: blacklistRepo, cancel: cancel},
		token.WithNowFunc(clock.Now),
		token.WithTokenExpiry(10*time.Minute, testRefreshTTL),
	)

	flow, err := auth.NewFlow(auth.Deps{
		Users:    userRepo,
		Verifier: users.NewVerifier(userRepo),
		Sessions: sessions.NewManager(sessionRepo, testRefreshTTL, sessions.WithNowFunc(clock.Now)),
		Tokens:   tokens,
		Tx:       db,
	})
	require.NoError(t, err)

	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, userRepo.Upsert(context.Background(),
		&users.User{Email: "alice@example.com", Login: "alice", PasswordHash: hash, Confirmed: true}))

	pair, err := flow.Login(context.Background(),
		auth.LoginInput{LoginOrEmail: "alice", Password: testPassword},
		auth.ClientInfo{IP: "10.0.0.1", UserAgent: "Firefox"},
	)
	require.NoError(t, err)

	res := tokens.RefreshPayload(pair.RefreshToken)
	require.True(t, res.Valid())
	before, err := sessionRepo.Get(context.Background(), res.Payload.DeviceID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	rotated, err := flow.Refresh(reqCtx, pair.RefreshToken)
	require.NoError(t, err)
	require.ErrorIs(t, reqCtx.Err(), context.Canceled)
	require.NotEmpty(t, rotated.RefreshToken)

	claimed, err := blacklistRepo.Contains(context.Background(), blacklist.Hash(pair.RefreshToken))
	require.NoError(t, err)
	require.True(t, claimed)

	after, err := sessionRepo.Get(context.Background(), res.Payload.DeviceID)
	require.NoError(t, err)
	require.True(t, after.LastActiveAt.After(before.LastActiveAt))
	require.True(t, after.ExpiresAt.After(before.ExpiresAt))
}

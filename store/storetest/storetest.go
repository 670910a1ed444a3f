// Package storetest holds behaviour checks every store implementation must pass.
// Keys are random so the checks can run against a shared database.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
	"github.com/jrsteele09/go-session-auth/store"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	"github.com/jrsteele09/go-session-auth/users"
	"github.com/stretchr/testify/require"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newSession(userID string, lastActive time.Time) *sessions.Session {
	return &sessions.Session{
		UserID:         userID,
		DeviceID:       uuid.New().String(),
		IP:             "10.0.0.1",
		UserAgentTitle: "storetest",
		LastActiveAt:   lastActive,
		ExpiresAt:      lastActive.Add(time.Hour),
	}
}

// SessionRepo checks a sessions.Repo implementation.
func SessionRepo(t *testing.T, repo sessions.Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert get", func(t *testing.T) {
		s := newSession(uuid.New().String(), now())
		require.NoError(t, repo.Insert(ctx, s))

		got, err := repo.Get(ctx, s.DeviceID)
		require.NoError(t, err)
		require.Equal(t, s.UserID, got.UserID)
		require.Equal(t, s.IP, got.IP)
		require.Equal(t, s.UserAgentTitle, got.UserAgentTitle)
		require.True(t, s.LastActiveAt.Equal(got.LastActiveAt))
		require.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

		require.ErrorIs(t, repo.Insert(ctx, s), apperrors.ErrSessionExists)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New().String())
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("touch", func(t *testing.T) {
		s := newSession(uuid.New().String(), now())
		require.NoError(t, repo.Insert(ctx, s))

		later := s.LastActiveAt.Add(time.Minute)
		require.NoError(t, repo.Touch(ctx, s.DeviceID, later, later.Add(time.Hour)))

		got, err := repo.Get(ctx, s.DeviceID)
		require.NoError(t, err)
		require.True(t, later.Equal(got.LastActiveAt))
		require.True(t, later.Add(time.Hour).Equal(got.ExpiresAt))

		require.ErrorIs(t, repo.Touch(ctx, uuid.New().String(), later, later), apperrors.ErrSessionNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		userID := uuid.New().String()
		base := now()
		older := newSession(userID, base.Add(-time.Minute))
		newer := newSession(userID, base)
		require.NoError(t, repo.Insert(ctx, older))
		require.NoError(t, repo.Insert(ctx, newer))
		require.NoError(t, repo.Insert(ctx, newSession(uuid.New().String(), base)))

		list, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, newer.DeviceID, list[0].DeviceID)
		require.Equal(t, older.DeviceID, list[1].DeviceID)

		empty, err := repo.ListByUser(ctx, uuid.New().String())
		require.NoError(t, err)
		require.Empty(t, empty)
	})

	t.Run("delete checks owner", func(t *testing.T) {
		s := newSession(uuid.New().String(), now())
		require.NoError(t, repo.Insert(ctx, s))

		require.NoError(t, repo.Delete(ctx, uuid.New().String(), s.DeviceID))
		_, err := repo.Get(ctx, s.DeviceID)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, s.UserID, s.DeviceID))
		_, err = repo.Get(ctx, s.DeviceID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

		require.NoError(t, repo.Delete(ctx, s.UserID, s.DeviceID))
	})

	t.Run("delete all except", func(t *testing.T) {
		userID := uuid.New().String()
		d1, d2, d3 := newSession(userID, now()), newSession(userID, now()), newSession(userID, now())
		other := newSession(uuid.New().String(), now())
		for _, s := range []*sessions.Session{d1, d2, d3, other} {
			require.NoError(t, repo.Insert(ctx, s))
		}

		n, err := repo.DeleteAllExcept(ctx, userID, d1.DeviceID)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		list, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, d1.DeviceID, list[0].DeviceID)

		_, err = repo.Get(ctx, other.DeviceID)
		require.NoError(t, err)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newSession(uuid.New().String(), now())
		require.NoError(t, repo.Insert(ctx, s))

		n, err := repo.DeleteExpired(ctx, s.ExpiresAt)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		_, err = repo.Get(ctx, s.DeviceID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

// BlacklistRepo checks a blacklist.Repo implementation, including that
// concurrent adds of one hash have exactly one winner.
func BlacklistRepo(t *testing.T, repo blacklist.Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("add contains", func(t *testing.T) {
		hash := blacklist.Hash(uuid.New().String())

		found, err := repo.Contains(ctx, hash)
		require.NoError(t, err)
		require.False(t, found)

		added, err := repo.Add(ctx, hash, now().Add(time.Hour))
		require.NoError(t, err)
		require.True(t, added)

		added, err = repo.Add(ctx, hash, now().Add(time.Hour))
		require.NoError(t, err)
		require.False(t, added)

		found, err = repo.Contains(ctx, hash)
		require.NoError(t, err)
		require.True(t, found)
	})

	t.Run("single winner", func(t *testing.T) {
		hash := blacklist.Hash(uuid.New().String())

		const callers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				added, err := repo.Add(ctx, hash, now().Add(time.Hour))
				if err == nil && added {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, winners)
	})
}

// BlacklistExpiry checks that DeleteExpired drops only expired entries. Stores that
// expire entries on their own skip it.
func BlacklistExpiry(t *testing.T, repo blacklist.Repo) {
	t.Helper()
	ctx := context.Background()

	base := now()
	expired := blacklist.Hash(uuid.New().String())
	live := blacklist.Hash(uuid.New().String())
	_, err := repo.Add(ctx, expired, base.Add(-time.Second))
	require.NoError(t, err)
	_, err = repo.Add(ctx, live, base.Add(time.Hour))
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, base)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	found, err := repo.Contains(ctx, expired)
	require.NoError(t, err)
	require.False(t, found)

	found, err = repo.Contains(ctx, live)
	require.NoError(t, err)
	require.True(t, found)
}

// UserRepo checks a users.Repo implementation.
func UserRepo(t *testing.T, repo users.Repo) {
	t.Helper()
	ctx := context.Background()

	suffix := uuid.New().String()[:8]
	u := &users.User{
		Email:        "Store." + suffix + "@Example.com",
		Login:        "store-" + suffix,
		PasswordHash: "hash",
		Confirmed:    true,
	}
	require.NoError(t, repo.Upsert(ctx, u))
	require.NotEmpty(t, u.ID)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "store."+suffix+"@example.com", byID.Email)
	require.True(t, byID.Confirmed)

	byEmail, err := repo.GetByEmail(ctx, "STORE."+suffix+"@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byLogin, err := repo.GetByLogin(ctx, u.Login)
	require.NoError(t, err)
	require.Equal(t, u.ID, byLogin.ID)

	u.Confirmed = false
	require.NoError(t, repo.Upsert(ctx, u))
	byID, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, byID.Confirmed)

	dup := &users.User{Email: u.Email, Login: "other-" + suffix, PasswordHash: "hash"}
	require.ErrorIs(t, repo.Upsert(ctx, dup), apperrors.ErrUserExists)

	_, err = repo.GetByEmail(ctx, "missing-"+suffix+"@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

// Transactions checks that work done through ctx inside InTx commits together
// and rolls back together.
func Transactions(t *testing.T, tx store.Transactor, sessionRepo sessions.Repo, blacklistRepo blacklist.Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("rollback", func(t *testing.T) {
		s := newSession(uuid.New().String(), now())
		hash := blacklist.Hash(uuid.New().String())
		boom := errors.New("boom")

		err := tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := blacklistRepo.Add(ctx, hash, now().Add(time.Hour)); err != nil {
				return err
			}
			if err := sessionRepo.Insert(ctx, s); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		found, err := blacklistRepo.Contains(ctx, hash)
		require.NoError(t, err)
		require.False(t, found)
		_, err = sessionRepo.Get(ctx, s.DeviceID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("commit", func(t *testing.T) {
		s := newSession(uuid.New().String(), now())
		hash := blacklist.Hash(uuid.New().String())

		err := tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := blacklistRepo.Add(ctx, hash, now().Add(time.Hour)); err != nil {
				return err
			}
			return sessionRepo.Insert(ctx, s)
		})
		require.NoError(t, err)

		found, err := blacklistRepo.Contains(ctx, hash)
		require.NoError(t, err)
		require.True(t, found)
		_, err = sessionRepo.Get(ctx, s.DeviceID)
		require.NoError(t, err)
	})
}

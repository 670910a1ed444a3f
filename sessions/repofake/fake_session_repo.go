package fakesessionrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps sessions in memory. Rows are copied in and out so callers
// never share mutable state with the store.
type FakeSessionRepo struct {
	sessions map[string]sessions.Session // device id to session
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]sessions.Session),
	}
}

func (sr *FakeSessionRepo) Insert(_ context.Context, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.sessions[session.DeviceID]; ok {
		return apperrors.ErrSessionExists
	}
	sr.sessions[session.DeviceID] = *session
	return nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, deviceID string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[deviceID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return &session, nil
}

func (sr *FakeSessionRepo) Touch(_ context.Context, deviceID string, lastActiveAt, expiresAt time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[deviceID]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	session.LastActiveAt = lastActiveAt
	session.ExpiresAt = expiresAt
	sr.sessions[deviceID] = session
	return nil
}

func (sr *FakeSessionRepo) ListByUser(_ context.Context, userID string) ([]*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	list := make([]*sessions.Session, 0)
	for _, v := range sr.sessions {
		if v.UserID == userID {
			session := v
			list = append(list, &session)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].LastActiveAt.After(list[j].LastActiveAt)
	})
	return list, nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, userID, deviceID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if session, ok := sr.sessions[deviceID]; ok && session.UserID == userID {
		delete(sr.sessions, deviceID)
	}
	return nil
}

func (sr *FakeSessionRepo) DeleteAllExcept(_ context.Context, userID, exceptDeviceID string) (int64, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	var deleted int64
	for deviceID, session := range sr.sessions {
		if session.UserID == userID && deviceID != exceptDeviceID {
			delete(sr.sessions, deviceID)
			deleted++
		}
	}
	return deleted, nil
}

func (sr *FakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	var deleted int64
	for deviceID, session := range sr.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(sr.sessions, deviceID)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored sessions, expired or not.
func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.sessions)
}

package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
)

// Manager creates, refreshes, lists and terminates device sessions.
// It is the only writer of session rows.
type Manager struct {
	repo        Repo
	refreshTTL  time.Duration
	nowFunc     func() time.Time
	newDeviceID func() string
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithDeviceIDFunc overrides device id minting. Ids must be globally unique.
func WithDeviceIDFunc(f func() string) ManagerOption {
	return func(m *Manager) {
		m.newDeviceID = f
	}
}

func NewManager(repo Repo, refreshTTL time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:       repo,
		refreshTTL: refreshTTL,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.refreshTTL <= 0 {
		m.refreshTTL = 20 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.newDeviceID == nil {
		m.newDeviceID = func() string { return uuid.New().String() }
	}
	return m
}

// RefreshTTL is the lifetime granted to a session on creation and on every update.
func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// GenerateSession mints a fresh device id and stores a new session for userID.
func (m *Manager) GenerateSession(ctx context.Context, ip, userAgent, userID string) (*Session, error) {
	if userAgent == "" {
		userAgent = "unknown"
	}
	now := m.now()
	session := &Session{
		UserID:         userID,
		DeviceID:       m.newDeviceID(),
		IP:             ip,
		UserAgentTitle: userAgent,
		LastActiveAt:   now,
		ExpiresAt:      now.Add(m.refreshTTL),
	}
	if err := m.repo.Insert(ctx, session); err != nil {
		return nil, apperrors.Wrapf(err, "Manager.GenerateSession Insert")
	}
	return session, nil
}

// UpdateSession bumps LastActiveAt and ExpiresAt of an active session in place.
// The device id never changes. Missing or expired sessions yield ErrSessionNotFound.
func (m *Manager) UpdateSession(ctx context.Context, deviceID string) (*Session, error) {
	session, err := m.repo.Get(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Wrapf(err, "Manager.UpdateSession Get")
	}

	now := m.now()
	if session.Expired(now) {
		return nil, apperrors.ErrSessionNotFound
	}

	// LastActiveAt is strictly increasing even when the clock hasn't moved.
	if !now.After(session.LastActiveAt) {
		now = session.LastActiveAt.Add(time.Microsecond)
	}
	updated := *session
	updated.LastActiveAt = now
	updated.ExpiresAt = now.Add(m.refreshTTL)

	if err := m.repo.Touch(ctx, deviceID, updated.LastActiveAt, updated.ExpiresAt); err != nil {
		return nil, apperrors.Wrapf(err, "Manager.UpdateSession Touch")
	}
	return &updated, nil
}

// FindSession returns the active session for deviceID, or nil when there is none.
func (m *Manager) FindSession(ctx context.Context, deviceID string) (*Session, error) {
	session, err := m.repo.Get(ctx, deviceID)
	if apperrors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "Manager.FindSession Get")
	}
	if session.Expired(m.now()) {
		return nil, nil
	}
	return session, nil
}

// AllByUser lists the user's active sessions, most recently active first.
func (m *Manager) AllByUser(ctx context.Context, userID string) ([]*Session, error) {
	list, err := m.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrapf(err, "Manager.AllByUser ListByUser")
	}

	now := m.now()
	active := make([]*Session, 0, len(list))
	for _, s := range list {
		if !s.Expired(now) {
			active = append(active, s)
		}
	}
	return active, nil
}

// DeleteSession terminates exactly the (userID, deviceID) session. Absent sessions are ignored.
func (m *Manager) DeleteSession(ctx context.Context, userID, deviceID string) error {
	if err := m.repo.Delete(ctx, userID, deviceID); err != nil {
		return apperrors.Wrapf(err, "Manager.DeleteSession Delete")
	}
	return nil
}

// DeleteAllExcept terminates every session of userID except exceptDeviceID.
func (m *Manager) DeleteAllExcept(ctx context.Context, userID, exceptDeviceID string) error {
	if _, err := m.repo.DeleteAllExcept(ctx, userID, exceptDeviceID); err != nil {
		return apperrors.Wrapf(err, "Manager.DeleteAllExcept")
	}
	return nil
}

// PurgeExpired removes sessions that have passively expired.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, apperrors.Wrapf(err, "Manager.PurgeExpired")
	}
	return n, nil
}

func (m *Manager) now() time.Time {
	return m.nowFunc().UTC().Truncate(time.Microsecond)
}

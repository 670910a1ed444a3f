package token

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	"github.com/pkg/errors"
)

// ErrTokenReused is returned when a refresh token is claimed a second time.
var ErrTokenReused = stderrors.New("refresh token already used")

// Manager issues, decodes and revokes tokens. Apart from the injected blacklist it
// holds no state, so one Manager serves every request.
type Manager struct {
	codec              *Codec
	blacklist          blacklist.Repo
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(codec *Codec, blacklistRepo blacklist.Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		codec:     codec,
		blacklist: blacklistRepo,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 10 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 20 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// GenerateAccessToken issues a short-lived access token for sub.
func (m *Manager) GenerateAccessToken(sub Subject) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"sub":        sub.ID,
		claimEmail:   sub.Email,
		claimLogin:   sub.Login,
		claimTokenID: uuid.New().String(),
	}

	token, err := m.codec.Issue(KindAccess, claims, now, now.Add(m.accessTokenExpiry))
	if err != nil {
		return "", errors.Wrap(err, "Manager.GenerateAccessToken")
	}
	return token, nil
}

// GenerateRefreshToken issues a refresh token bound to session. Its lifetime is the
// session's: iat is LastActiveAt and exp is ExpiresAt, so the session always outlives it.
func (m *Manager) GenerateRefreshToken(sub Subject, session *sessions.Session) (string, error) {
	if session == nil || session.DeviceID == "" {
		return "", errors.New("Manager.GenerateRefreshToken: session required")
	}
	if session.Expired(m.nowFunc()) {
		return "", errors.New("Manager.GenerateRefreshToken: session expired")
	}

	claims := jwt.MapClaims{
		"sub":         sub.ID,
		claimEmail:    sub.Email,
		claimDeviceID: session.DeviceID,
		claimTokenID:  uuid.New().String(),
	}

	token, err := m.codec.Issue(KindRefresh, claims, session.LastActiveAt, session.ExpiresAt)
	if err != nil {
		return "", errors.Wrap(err, "Manager.GenerateRefreshToken")
	}
	return token, nil
}

// AccessPayload decodes an access token. Every failure is reported as
// ErrUnauthenticated; the reason is kept in the chain for logging only.
func (m *Manager) AccessPayload(raw string) (AccessTokenPayload, error) {
	claims, err := m.codec.Decode(KindAccess, raw)
	if err != nil {
		return AccessTokenPayload{}, apperrors.Wrapf(apperrors.ErrUnauthenticated, "access token: %v", err)
	}
	payload, err := accessPayloadFromClaims(claims)
	if err != nil {
		return AccessTokenPayload{}, apperrors.Wrapf(apperrors.ErrUnauthenticated, "access token: %v", err)
	}
	return payload, nil
}

// RefreshPayload decodes a refresh token without consulting the blacklist.
func (m *Manager) RefreshPayload(raw string) RefreshResult {
	claims, err := m.codec.Decode(KindRefresh, raw)
	if err != nil {
		return RefreshResult{Err: err}
	}
	payload, err := refreshPayloadFromClaims(claims)
	if err != nil {
		return RefreshResult{Err: err}
	}
	return RefreshResult{Payload: payload}
}

// IsBlacklisted reports whether raw has been revoked. Store failures are returned
// as errors so callers reject the token rather than assume it is clean.
func (m *Manager) IsBlacklisted(ctx context.Context, raw string) (bool, error) {
	found, err := m.blacklist.Contains(ctx, blacklist.Hash(raw))
	if err != nil {
		return false, errors.Wrap(err, "Manager.IsBlacklisted")
	}
	return found, nil
}

// Blacklist revokes raw. Revoking an already revoked token is a no-op.
func (m *Manager) Blacklist(ctx context.Context, raw string) error {
	if _, err := m.blacklist.Add(ctx, blacklist.Hash(raw), m.blacklistExpiry(raw)); err != nil {
		return errors.Wrap(err, "Manager.Blacklist")
	}
	return nil
}

// ClaimRefreshToken revokes raw and fails with ErrTokenReused if someone else
// revoked it first. This is the single-use gate of refresh-token rotation.
func (m *Manager) ClaimRefreshToken(ctx context.Context, raw string, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		expiresAt = m.blacklistExpiry(raw)
	}
	added, err := m.blacklist.Add(ctx, blacklist.Hash(raw), expiresAt)
	if err != nil {
		return errors.Wrap(err, "Manager.ClaimRefreshToken")
	}
	if !added {
		return ErrTokenReused
	}
	return nil
}

// PurgeBlacklist drops entries whose tokens can no longer validate anyway.
func (m *Manager) PurgeBlacklist(ctx context.Context) (int64, error) {
	n, err := m.blacklist.DeleteExpired(ctx, m.nowFunc())
	if err != nil {
		return 0, errors.Wrap(err, "Manager.PurgeBlacklist")
	}
	return n, nil
}

func (m *Manager) blacklistExpiry(raw string) time.Time {
	if res := m.RefreshPayload(raw); res.Valid() && !res.Payload.ExpiresAt.IsZero() {
		return res.Payload.ExpiresAt
	}
	return m.nowFunc().Add(m.refreshTokenExpiry)
}

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
	"github.com/pkg/errors"
)

var _ sessions.Repo = (*SessionRepo)(nil)

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `user_id, device_id, ip, user_agent_title, last_active_at, expires_at`

func (r *SessionRepo) Insert(ctx context.Context, s *sessions.Session) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO device_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.UserID, s.DeviceID, s.IP, s.UserAgentTitle, s.LastActiveAt, s.ExpiresAt)
	if isUniqueViolation(err) {
		return apperrors.ErrSessionExists
	}
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Insert"))
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, deviceID string) (*sessions.Session, error) {
	row := r.db.q(ctx).QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM device_sessions
		WHERE device_id = $1
	`, deviceID)

	s, err := scanSession(row)
	if apperrors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Get"))
	}
	return s, nil
}

func (r *SessionRepo) Touch(ctx context.Context, deviceID string, lastActiveAt, expiresAt time.Time) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE device_sessions
		SET last_active_at = $2, expires_at = $3
		WHERE device_id = $1
	`, deviceID, lastActiveAt, expiresAt)
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Touch"))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string) ([]*sessions.Session, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+sessionColumns+`
		FROM device_sessions
		WHERE user_id = $1
		ORDER BY last_active_at DESC
	`, userID)
	if err != nil {
		return nil, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.ListByUser"))
	}
	defer rows.Close()

	list := make([]*sessions.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.ListByUser scan"))
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.ListByUser rows"))
	}
	return list, nil
}

func (r *SessionRepo) Delete(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM device_sessions WHERE user_id = $1 AND device_id = $2
	`, userID, deviceID)
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Delete"))
	}
	return nil
}

func (r *SessionRepo) DeleteAllExcept(ctx context.Context, userID, exceptDeviceID string) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM device_sessions WHERE user_id = $1 AND device_id <> $2
	`, userID, exceptDeviceID)
	if err != nil {
		return 0, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.DeleteAllExcept"))
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM device_sessions WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.DeleteExpired"))
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*sessions.Session, error) {
	var s sessions.Session
	if err := row.Scan(&s.UserID, &s.DeviceID, &s.IP, &s.UserAgentTitle, &s.LastActiveAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	s.LastActiveAt = s.LastActiveAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return &s, nil
}

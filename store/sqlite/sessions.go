package sqlite

import (
	"context"
	"database/sql"
	"time"

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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepo) Insert(ctx context.Context, s *sessions.Session) error {
	_, err := r.db.q(ctx).ExecContext(ctx, `
		INSERT INTO device_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.UserID, s.DeviceID, s.IP, s.UserAgentTitle, toMicros(s.LastActiveAt), toMicros(s.ExpiresAt))
	if isUniqueViolation(err) {
		return apperrors.ErrSessionExists
	}
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Insert"))
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, deviceID string) (*sessions.Session, error) {
	row := r.db.q(ctx).QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM device_sessions WHERE device_id = ?
	`, deviceID)

	s, err := scanSession(row)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Get"))
	}
	return s, nil
}

func (r *SessionRepo) Touch(ctx context.Context, deviceID string, lastActiveAt, expiresAt time.Time) error {
	res, err := r.db.q(ctx).ExecContext(ctx, `
		UPDATE device_sessions SET last_active_at = ?, expires_at = ? WHERE device_id = ?
	`, toMicros(lastActiveAt), toMicros(expiresAt), deviceID)
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Touch"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string) ([]*sessions.Session, error) {
	rows, err := r.db.q(ctx).QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM device_sessions
		WHERE user_id = ?
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
	_, err := r.db.q(ctx).ExecContext(ctx, `
		DELETE FROM device_sessions WHERE user_id = ? AND device_id = ?
	`, userID, deviceID)
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "SessionRepo.Delete"))
	}
	return nil
}

func (r *SessionRepo) DeleteAllExcept(ctx context.Context, userID, exceptDeviceID string) (int64, error) {
	res, err := r.db.q(ctx).ExecContext(ctx, `
		DELETE FROM device_sessions WHERE user_id = ? AND device_id <> ?
	`, userID, exceptDeviceID)
	if err != nil {
		return 0, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.DeleteAllExcept"))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.q(ctx).ExecContext(ctx, `
		DELETE FROM device_sessions WHERE expires_at <= ?
	`, toMicros(now))
	if err != nil {
		return 0, apperrors.Unavailable(errors.Wrap(err, "SessionRepo.DeleteExpired"))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSession(row rowScanner) (*sessions.Session, error) {
	var (
		s                     sessions.Session
		lastActive, expiresAt int64
	)
	if err := row.Scan(&s.UserID, &s.DeviceID, &s.IP, &s.UserAgentTitle, &lastActive, &expiresAt); err != nil {
		return nil, err
	}
	s.LastActiveAt = fromMicros(lastActive)
	s.ExpiresAt = fromMicros(expiresAt)
	return &s, nil
}

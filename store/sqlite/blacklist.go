package sqlite

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	"github.com/pkg/errors"
)

var _ blacklist.Repo = (*BlacklistRepo)(nil)

type BlacklistRepo struct {
	db *DB
}

func NewBlacklistRepo(db *DB) *BlacklistRepo {
	return &BlacklistRepo{db: db}
}

func (r *BlacklistRepo) Contains(ctx context.Context, tokenHash string) (bool, error) {
	var found int
	err := r.db.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM refresh_blacklist WHERE token_hash = ?)
	`, tokenHash).Scan(&found)
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Contains"))
	}
	return found == 1, nil
}

func (r *BlacklistRepo) Add(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	res, err := r.db.q(ctx).ExecContext(ctx, `
		INSERT INTO refresh_blacklist (token_hash, expires_at) VALUES (?, ?)
		ON CONFLICT (token_hash) DO NOTHING
	`, tokenHash, toMicros(expiresAt))
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Add"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Add rows"))
	}
	return n == 1, nil
}

func (r *BlacklistRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.q(ctx).ExecContext(ctx, `
		DELETE FROM refresh_blacklist WHERE expires_at <= ?
	`, toMicros(now))
	if err != nil {
		return 0, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.DeleteExpired"))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

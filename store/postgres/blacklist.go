package postgres

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
	var found bool
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM refresh_blacklist WHERE token_hash = $1)
	`, tokenHash).Scan(&found)
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Contains"))
	}
	return found, nil
}

func (r *BlacklistRepo) Add(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO refresh_blacklist (token_hash, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO NOTHING
	`, tokenHash, expiresAt)
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Add"))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BlacklistRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM refresh_blacklist WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.DeleteExpired"))
	}
	return tag.RowsAffected(), nil
}

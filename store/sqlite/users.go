package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/users"
	"github.com/pkg/errors"
)

var _ users.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, login, password_hash, confirmed, created_at`

func (r *UserRepo) Upsert(ctx context.Context, u *users.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = users.NormalizeEmail(u.Email)

	_, err := r.db.q(ctx).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			login = excluded.login,
			password_hash = excluded.password_hash,
			confirmed = excluded.confirmed
	`, u.ID, u.Email, u.Login, u.PasswordHash, u.Confirmed, toMicros(u.CreatedAt))
	if isUniqueViolation(err) {
		return apperrors.Wrapf(apperrors.ErrUserExists, "email %s or login %s", u.Email, u.Login)
	}
	if err != nil {
		return apperrors.Unavailable(errors.Wrap(err, "UserRepo.Upsert"))
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getBy(ctx, "email", users.NormalizeEmail(email))
}

func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*users.User, error) {
	return r.getBy(ctx, "login", login)
}

// getBy is only called with fixed column names.
func (r *UserRepo) getBy(ctx context.Context, column, value string) (*users.User, error) {
	var (
		u         users.User
		createdAt int64
	)
	err := r.db.q(ctx).QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE `+column+` = ?
	`, value).Scan(&u.ID, &u.Email, &u.Login, &u.PasswordHash, &u.Confirmed, &createdAt)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(errors.Wrapf(err, "UserRepo.GetBy %s", column))
	}
	u.CreatedAt = fromMicros(createdAt)
	return &u, nil
}

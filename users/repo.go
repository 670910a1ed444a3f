package users

import "context"

// Repo looks users up for authentication. Get* methods return
// errors.ErrUserNotFound when no user matches.
type Repo interface {
	Upsert(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
}

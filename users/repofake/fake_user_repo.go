package fakeuserrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]users.User
	emailIds map[string]string // email to user id
	loginIds map[string]string // login to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]users.User),
		emailIds: make(map[string]string),
		loginIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = users.NormalizeEmail(user.Email)

	if id, ok := ur.emailIds[user.Email]; ok && id != user.ID {
		return apperrors.Wrapf(apperrors.ErrUserExists, "email %s", user.Email)
	}
	if id, ok := ur.loginIds[user.Login]; ok && id != user.ID {
		return apperrors.Wrapf(apperrors.ErrUserExists, "login %s", user.Login)
	}

	if prev, ok := ur.users[user.ID]; ok {
		delete(ur.emailIds, prev.Email)
		delete(ur.loginIds, prev.Login)
	}
	ur.users[user.ID] = *user
	ur.emailIds[user.Email] = user.ID
	ur.loginIds[user.Login] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.get(id)
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.get(ur.emailIds[users.NormalizeEmail(email)])
}

func (ur *FakeUserRepo) GetByLogin(_ context.Context, login string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.get(ur.loginIds[login])
}

func (ur *FakeUserRepo) get(id string) (*users.User, error) {
	u, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

package users

import (
	"context"
	"strings"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no user matches so unknown accounts
// take as long to reject as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Verifier checks login credentials against a Repo.
type Verifier struct {
	repo Repo
}

func NewVerifier(repo Repo) *Verifier {
	return &Verifier{repo: repo}
}

// VerifyUser resolves loginOrEmail and checks password. Unknown users and wrong
// passwords both return ErrInvalidCredentials. Confirmation is left to the caller.
func (v *Verifier) VerifyUser(ctx context.Context, loginOrEmail, password string) (*User, error) {
	loginOrEmail = strings.TrimSpace(loginOrEmail)
	if loginOrEmail == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := v.lookup(ctx, loginOrEmail)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "Verifier.VerifyUser")
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

func (v *Verifier) lookup(ctx context.Context, loginOrEmail string) (*User, error) {
	if strings.Contains(loginOrEmail, "@") {
		return v.repo.GetByEmail(ctx, NormalizeEmail(loginOrEmail))
	}
	return v.repo.GetByLogin(ctx, loginOrEmail)
}

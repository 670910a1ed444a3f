package server

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-session-auth/internal/config"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/users"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem creates the configured seed user in DEV so a fresh install can
// log in. Registration lives outside this service. An existing user is left untouched.
func InitialiseSystem(ctx context.Context, cfg config.Config, repo users.Repo) error {
	seed, ok := cfg.GetSeedUser()
	if !ok {
		return nil
	}
	if !cfg.IsDev() {
		log.Warn().Msg("Bootstrap: seed user ignored outside DEV")
		return nil
	}

	existing, err := repo.GetByEmail(ctx, seed.Email)
	if err == nil {
		log.Info().Str("user_id", existing.ID).Msg("Bootstrap: seed user already exists")
		return nil
	}
	if !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return fmt.Errorf("[InitialiseSystem] lookup seed user: %w", err)
	}

	if err := users.ValidatePasswordStrength(seed.Password); err != nil {
		return fmt.Errorf("[InitialiseSystem] seed user password: %w", err)
	}
	hash, err := users.HashPassword(seed.Password)
	if err != nil {
		return fmt.Errorf("[InitialiseSystem] hash seed password: %w", err)
	}

	u := &users.User{
		Email:        seed.Email,
		Login:        seed.Login,
		PasswordHash: hash,
		Confirmed:    true,
	}
	if err := repo.Upsert(ctx, u); err != nil {
		return fmt.Errorf("[InitialiseSystem] create seed user: %w", err)
	}

	log.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("Bootstrap: seed user created")
	return nil
}

package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/token"
)

// Outcome labels for metrics, traces and logs.
const (
	OutcomeOK              = "ok"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
	OutcomeNotFound        = "not_found"
	OutcomeInvalid         = "invalid"
	OutcomeUnavailable     = "unavailable"
	OutcomeReused          = "reused"
	OutcomeError           = "error"
)

// Outcome classifies err into one of the Outcome* labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case apperrors.Is(err, apperrors.ErrStoreUnavailable):
		return OutcomeUnavailable
	case apperrors.Is(err, token.ErrTokenReused):
		return OutcomeReused
	case apperrors.Is(err, apperrors.ErrUnauthenticated):
		return OutcomeUnauthenticated
	case apperrors.Is(err, apperrors.ErrForbidden):
		return OutcomeForbidden
	case apperrors.Is(err, apperrors.ErrNotFound):
		return OutcomeNotFound
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func unauthenticated(reason error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, reason)
}

func forbidden(reason error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrForbidden, reason)
}

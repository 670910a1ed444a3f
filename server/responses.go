package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-session-auth/auth"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/rs/zerolog"
)

// statusFor maps a flow error onto an HTTP status. Storage failures come first so
// an unreachable store is never reported as a client error.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case apperrors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return auth.OutcomeInvalid
	case http.StatusUnauthorized:
		return auth.OutcomeUnauthenticated
	case http.StatusForbidden:
		return auth.OutcomeForbidden
	case http.StatusNotFound:
		return auth.OutcomeNotFound
	case http.StatusServiceUnavailable:
		return auth.OutcomeUnavailable
	default:
		return auth.OutcomeError
	}
}

// writeError sends the status for err. The cause is logged, never returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSONError(w, errorCode(status), status)
}

func writeJSONError(w http.ResponseWriter, code string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             code,
		"error_description": http.StatusText(statusCode),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

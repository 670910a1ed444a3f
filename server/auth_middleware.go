package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyAccessToken stores the raw bearer token of the request.
const ContextKeyAccessToken ContextKey = "access_token"

// RequireBearer rejects requests without an "Authorization: Bearer" header and
// stores the token in the request context. The token itself is checked by the flow.
func (s *Server) RequireBearer() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				s.writeError(w, r, apperrors.Wrapf(apperrors.ErrUnauthenticated, "missing bearer token"))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAccessToken, token)
			next(w, r.WithContext(ctx))
		}
	}
}

func accessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(ContextKeyAccessToken).(string)
	return token
}

// refreshToken reads the refresh cookie. A missing cookie yields "", which the
// flow rejects as unauthenticated.
func refreshToken(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(s.flow.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure(),
		SameSite: http.SameSiteStrictMode,
	})
}

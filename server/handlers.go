package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-session-auth/auth"
	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
)

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// LoginHandler authenticates a JSON {loginOrEmail, password} body and opens a
// device session for the caller.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.LoginInput
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&in); err != nil {
			s.writeError(w, r, apperrors.Wrapf(apperrors.ErrInvalidInput, "login body: %v", err))
			return
		}

		pair, err := s.flow.Login(r.Context(), in, auth.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeTokenPair(w, pair)
	}
}

func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pair, err := s.flow.Refresh(r.Context(), refreshToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeTokenPair(w, pair)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flow.Logout(r.Context(), refreshToken(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.clearRefreshCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := s.flow.WhoAmI(r.Context(), accessTokenFrom(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, me)
	}
}

func (s *Server) DevicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := s.flow.Devices(r.Context(), refreshToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, devices)
	}
}

func (s *Server) TerminateOthersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flow.TerminateOthers(r.Context(), refreshToken(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) TerminateDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flow.TerminateDevice(r.Context(), refreshToken(r), r.PathValue("deviceId")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler runs every registered probe and reports 503 if any fails.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range s.health {
			if err := check(r.Context()); err != nil {
				s.writeError(w, r, apperrors.Unavailable(err))
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) writeTokenPair(w http.ResponseWriter, pair auth.TokenPair) {
	s.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: pair.AccessToken})
}

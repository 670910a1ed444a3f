// Package server exposes the auth flows over HTTP. Refresh tokens travel in an
// HttpOnly cookie, access tokens in the Authorization header.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-auth/auth"
	"github.com/jrsteele09/go-session-auth/internal/config"
	"github.com/jrsteele09/go-session-auth/internal/metrics"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	env     string
	mux     *http.ServeMux
	handler http.HandlerFunc
	routes  []string
	config  config.Config
	flow    *auth.Flow
	metrics *metrics.Metrics
	cors    *cors.Cors
	limiter *ipLimiter
	health  []HealthCheck
}

type Option func(*Server)

// WithHealthCheck adds a probe consulted by /healthz.
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) {
		s.health = append(s.health, check)
	}
}

func New(cfg config.Config, flow *auth.Flow, m *metrics.Metrics, options ...Option) (*Server, error) {
	if cfg == nil || flow == nil || m == nil {
		return nil, errors.New("[Server New] config, flow and metrics are required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		flow:    flow,
		metrics: m,
		limiter: newIPLimiter(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst()),
		cors: cors.New(cors.Options{
			AllowedOrigins:   cfg.GetAllowedOrigins(),
			AllowedMethods:   cfg.GetAllowedMethods(),
			AllowedHeaders:   cfg.GetAllowedHeaders(),
			AllowCredentials: true,
			MaxAge:           86400,
		}),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP,
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
	)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Msgf("[%s] %s", colourMethod(method), path)
	}
}

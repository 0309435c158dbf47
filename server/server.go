// Package server is a development stand-in for the backoffice API. It issues
// and checks the same kind of bearer tokens the real backend does, so the
// session client can be exercised end to end.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gigan-store/session-client/internal/config"
	"github.com/gigan-store/session-client/token"
	"github.com/gigan-store/session-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	users   users.UserRepo
	issuer  *token.Issuer
	revoked token.RevocationList
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Server)

// WithIssuer replaces the token issuer built from the configuration.
func WithIssuer(issuer *token.Issuer) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

// WithRevocationList shares a revocation list between server instances.
func WithRevocationList(list token.RevocationList) Option {
	return func(s *Server) {
		s.revoked = list
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(cfg config.Config, userRepo users.UserRepo, options ...Option) *Server {
	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		users:  userRepo,
		logger: log.With().Str("component", "server").Logger(),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.issuer == nil {
		s.issuer = token.NewIssuer(cfg.GetDevSigningSecret(),
			token.WithTTL(cfg.GetDevTokenTTL()),
			token.WithNowFunc(s.now),
		)
	}

	if s.revoked == nil {
		s.revoked = token.NewMemoryRevocationList(s.now)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered route patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	s.logger.Info().Msgf("[%s%s%s] %s", methodColour(method), paddedMethod, ResetColor, path)
}

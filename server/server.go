package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/school-console/identity/magiclink"
	"github.com/jrsteele09/school-console/identity/oidclogin"
	"github.com/jrsteele09/school-console/identity/sessiontoken"
	"github.com/jrsteele09/school-console/internal/config"
	"github.com/jrsteele09/school-console/sessions"
	"github.com/jrsteele09/school-console/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the console API is built from. OIDC is optional.
type Deps struct {
	Store    store.Store
	Resolver sessions.IdentityResolver
	Tokens   *sessiontoken.Manager
	Links    *magiclink.Service
	OIDC     *oidclogin.Client
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	store    store.Store
	resolver sessions.IdentityResolver
	tokens   *sessiontoken.Manager
	links    *magiclink.Service
	oidc     *oidclogin.Client
	consoles *consoleRegistry
	log      zerolog.Logger
}

type Option func(*Server)

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

func New(cfg config.Config, deps Deps, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Store == nil || deps.Resolver == nil {
		return nil, errors.New("[Server New] store and resolver are required")
	}
	if deps.Tokens == nil || deps.Links == nil {
		return nil, errors.New("[Server New] session tokens and magic links are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		store:    deps.Store,
		resolver: deps.Resolver,
		tokens:   deps.Tokens,
		links:    deps.Links,
		oidc:     deps.OIDC,
		log:      log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	s.consoles = newConsoleRegistry(cfg.GetMaxConsoleSessions(), cfg.GetSessionMaxAge(), s.newMachine)

	s.initRoutes()
	s.logRoutes()

	return s, nil
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

// ConsoleSessions returns the number of live console sessions.
func (s *Server) ConsoleSessions() int {
	return s.consoles.len()
}

func (s *Server) newMachine() (*sessions.Machine, error) {
	m, err := sessions.NewMachine(s.resolver, s.store, sessions.WithLogger(s.log))
	if err != nil {
		return nil, fmt.Errorf("[Server] new session machine: %w", err)
	}
	return m, nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path := "", route
		if parts := strings.SplitN(route, " ", 2); len(parts) > 1 {
			method, path = parts[0], parts[1]
		}
		s.log.Debug().Str("method", method).Str("path", path).Msg("route")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

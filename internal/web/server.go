// Package web wires the HTTP surface: router, middleware stack, and the
// handlers over the attendance state.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/class-track/internal/config"
	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/oracle"
	"github.com/kozaktomas/class-track/internal/state"
	"github.com/kozaktomas/class-track/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config         *config.Config
	state          *state.Manager
	provider       oracle.Provider
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
}

// NewServer creates a new web server. provider may be nil, in which case
// scans always take the degraded fallback path.
func NewServer(cfg *config.Config, st *state.Manager, provider oracle.Provider, sessionRepo middleware.SessionRepository) *Server {
	r := chi.NewRouter()

	// Create session manager with optional persistence
	sessionManager := middleware.NewSessionManager(cfg.Web.SessionSecret, sessionRepo)

	s := &Server{
		config:         cfg,
		state:          st,
		provider:       provider,
		router:         r,
		sessionManager: sessionManager,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes(sessionManager)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// oracleTimeout converts the configured per-call bound into a duration.
func (s *Server) oracleTimeout() time.Duration {
	return time.Duration(s.config.Oracle.TimeoutSeconds) * time.Second
}

// newMatcher builds the session matcher over the configured provider.
func (s *Server) newMatcher() *engine.Matcher {
	return engine.NewMatcher(s.provider, s.oracleTimeout())
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	// Stop the session cleanup goroutine
	if s.sessionManager != nil {
		s.sessionManager.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// SessionManager returns the session manager for testing
func (s *Server) SessionManager() *middleware.SessionManager {
	return s.sessionManager
}

// Package server exposes the checker over HTTP.
//
// Routes:
//
//	POST /v1/check   check submitted documents, respond with a report
//	GET  /healthz    liveness probe
//	GET  /version    build information
//
// A check request carries every document the check needs; -r and -c
// includes resolve only against the request's own documents, never the
// server's file system:
//
//	{
//	  "requirements": {"name": "requirements.txt", "content": "six==1.10.0\n"},
//	  "sources": [{"name": "requirements.in", "content": "-c constraints.txt\nsix\n"}],
//	  "documents": [{"name": "constraints.txt", "content": "six>=1.10\n"}],
//	  "env": {"python_version": "3.11"}
//	}
//
// The report format is chosen with ?format=json|yaml|text (default json).
// Findings do not change the HTTP status; the report's exit_status does.
// Reports are cached by the SHA-256 of the request body and format.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pincheck/pkg/cache"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	CacheTTL     time.Duration
	MaxBodyBytes int64
	// Env is the base marker environment; requests may override variables.
	Env marker.Env

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		CacheTTL:        time.Hour,
		MaxBodyBytes:    1 << 20,
		Env:             marker.DefaultEnv(),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server serves check requests.
type Server struct {
	config Config
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
	router chi.Router
}

// New creates a server. A nil cache disables caching, a nil keyer uses
// [cache.NewDefaultKeyer] and a nil logger uses log.Default().
func New(cfg Config, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.Env == nil {
		cfg.Env = def.Env
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{config: cfg, cache: c, keyer: keyer, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/check", s.handleCheck)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

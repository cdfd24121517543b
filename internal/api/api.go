// Package api provides HTTP handlers and the API server for TalentPipe.
//
// It exposes the conversational turn endpoint and read-only session resources
// for screening verdicts and stored emails.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/TalentPipe/internal/flow"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the TalentPipe HTTP API.
type Server struct {
	orchestrator *flow.Orchestrator
	store        store.Store
	httpServer   *http.Server
}

// NewServer creates the API server around the turn orchestrator and store.
func NewServer(orchestrator *flow.Orchestrator, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{orchestrator: orchestrator, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/turns", s.handleTurn)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/verdicts", s.handleListVerdicts)
			r.Get("/emails", s.handleListEmails)
		})
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Package server exposes the job API over HTTP: submission, status,
// results, health, and a WebSocket progress stream.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lhartmann/scribeq/internal/dispatch"
	"github.com/lhartmann/scribeq/internal/queue"
	"github.com/lhartmann/scribeq/internal/store"
)

// Server is the HTTP front of the job system.
type Server struct {
	dispatcher *dispatch.Dispatcher
	store      store.Store
	broker     *queue.Broker
	logger     *slog.Logger
	http       *http.Server

	// pollInterval drives the WebSocket progress stream.
	pollInterval time.Duration
}

// New wires the API. addr is the listen address, e.g. ":8080".
func New(addr string, d *dispatch.Dispatcher, s store.Store, b *queue.Broker, logger *slog.Logger) *Server {
	srv := &Server{
		dispatcher:   d,
		store:        s,
		broker:       b,
		logger:       logger.With("component", "http"),
		pollInterval: 250 * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", srv.handleSubmit)
	mux.HandleFunc("GET /api/jobs", srv.handleList)
	mux.HandleFunc("GET /api/jobs/{id}", srv.handleGet)
	mux.HandleFunc("GET /api/jobs/{id}/result", srv.handleResult)
	mux.HandleFunc("GET /api/jobs/{id}/events", srv.handleEvents)
	mux.HandleFunc("GET /api/health", srv.handleHealth)

	srv.http = &http.Server{
		Addr:         addr,
		Handler:      Logging(srv.logger)(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket streams outlive any fixed write deadline
	}
	return srv
}

// Handler returns the routed handler, used by tests with httptest.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks serving the API until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

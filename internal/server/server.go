// Package server implements the Watchtower operational HTTP server:
// health checks and expvar metrics.
package server

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports backing-store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the operational HTTP server.
type Server struct {
	addr    string
	pingers map[string]Pinger
	logger  *slog.Logger
	srv     *http.Server
}

// New creates the operational server. The pingers map names each backing
// store checked by /healthz.
func New(addr string, pingers map[string]Pinger, logger *slog.Logger) *Server {
	if addr == "" {
		addr = ":8080"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:    addr,
		pingers: pingers,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("operational server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	for name, pinger := range s.pingers {
		if err := pinger.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "store", name, "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","store":"` + name + `"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

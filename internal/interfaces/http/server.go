// Package http serves the read-only status surface: health, portfolio
// state, the latest cycle report and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/marketmill/rotor/internal/application"
	"github.com/marketmill/rotor/internal/domain/portfolio"
)

// Server is the read-only HTTP status server. It never mutates the ledger.
type Server struct {
	router *mux.Router
	server *http.Server
	log    zerolog.Logger

	mu     sync.RWMutex
	snap   portfolio.Snapshot
	report *application.Report
}

// NewServer builds the server. registry may be nil to disable /metrics.
func NewServer(listen string, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		log:    logger.With().Str("component", "http").Logger(),
	}
	s.server = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	s.router.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

// Publish stores the latest cycle outcome for the status endpoints.
func (s *Server) Publish(report application.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = report.Snapshot
	s.report = &report
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	s.log.Info().Str("listen", s.server.Addr).Msg("status server listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()

	if report == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle has run yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

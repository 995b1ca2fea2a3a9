// Package opsserver exposes the importer's internal operations HTTP
// surface: liveness/readiness probes, a Prometheus scrape endpoint, and
// a read-only job-progress debug endpoint. It is not the enterprise
// read surface — no business data is served here, only importer
// operational state. Grounded in controlcenter/internal/server/server.go's
// chi router/CORS/graceful-shutdown shape, scaled down to this
// importer's narrower surface.
package opsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbo-data/importer/internal/duckdb"
	"github.com/kbo-data/importer/internal/jobstore"
)

// Server is the chi-routed ops HTTP surface. It holds only what its
// handlers need: a DuckDB client for readiness pings and progress
// lookups, never the orchestrator itself.
type Server struct {
	router *chi.Mux
	db     *duckdb.Client
	log    *slog.Logger
	srv    *http.Server
}

// New builds the ops server bound to addr (e.g. "127.0.0.1:9090" or
// "0.0.0.0:9090" behind a trusted proxy).
func New(addr string, db *duckdb.Client, log *slog.Logger) *Server {
	s := &Server{router: chi.NewRouter(), db: db, log: log}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET"},
	}))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/jobs/{id}/progress", s.handleJobProgress)
}

// handleHealthz reports process liveness only: no dependency checks,
// so a slow database never fails the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports whether the importer can currently serve work,
// i.e. whether the DuckDB catalog is reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.DB().PingContext(ctx); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("database unreachable: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleJobProgress serves getProgress(job_id) as read-only JSON, for
// operators inspecting an in-flight or recently finished job.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		s.writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	conn, err := s.db.Conn(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer conn.Close()

	snap, err := jobstore.GetProgress(r.Context(), conn, jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// Handler returns the server's router, for tests exercising routes
// directly via httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting ops server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down ops server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elonfeng/trendfit/internal/pipeline"
	"github.com/elonfeng/trendfit/internal/store"
)

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	pipeline  *pipeline.Pipeline
	collector *pipeline.Collector
	port      int
	logger    *slog.Logger
}

// New creates a new HTTP server. collector may be nil, which disables
// POST /api/v1/collect.
func New(s store.Store, p *pipeline.Pipeline, collector *pipeline.Collector, port int, logger *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:     s,
		pipeline:  p,
		collector: collector,
		port:      port,
		logger:    logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/orgs", s.handleOrgs)
	mux.HandleFunc("GET /api/v1/orgs/{id}/recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /api/v1/orgs/{id}/diversity", s.handleDiversity)
	mux.HandleFunc("POST /api/v1/orgs/{id}/recommend", s.handleRecommend)
	mux.HandleFunc("GET /api/v1/signals", s.handleSignals)
	mux.HandleFunc("POST /api/v1/collect", s.handleCollect)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.store.ListOrganizations(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  orgs,
		"count": len(orgs),
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetOrganization(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	recs, err := s.store.LatestRecommendations(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  recs,
		"count": len(recs),
	})
}

func (s *Server) handleDiversity(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.LatestDiversityReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": report})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetOrganization(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.pipeline.RunOrg(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": report})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	opts := store.SignalListOpts{Limit: 100}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		opts.Since = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		opts.Limit = n
	}

	sigs, err := s.store.ListSignals(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  sigs,
		"count": len(sigs),
	})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no sources configured"})
		return
	}
	sigs, err := s.collector.Collect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collected": len(sigs)})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

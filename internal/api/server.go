// Package api exposes the thin admin HTTP surface: trigger a single
// building scrape, poll its job, health, and metrics. Batch runs stay on
// the CLI/cron path and are not exposed here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/jobs"
	"github.com/rentpulse/rentpulse/internal/scrape"
)

// Scraper runs one building end to end. Satisfied by *batch.Orchestrator.
type Scraper interface {
	ScrapeBuilding(ctx context.Context, id int64) (scrape.Outcome, error)
}

// Server wires the admin routes.
type Server struct {
	router   chi.Router
	scraper  Scraper
	jobs     *jobs.Registry
	metrics  http.Handler
	logger   *zap.Logger
	jobCtx   context.Context // parent for async scrapes, outlives the request
	jobLimit chan struct{}
}

// NewServer builds the router. metricsHandler may be nil, which disables
// the /metrics route.
func NewServer(scraper Scraper, registry *jobs.Registry, metricsHandler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: scraper,
		jobs:    registry,
		metrics: metricsHandler,
		logger:  logger,
		jobCtx:  context.Background(),
		// One async scrape at a time keeps the admin path from competing
		// with batch runs for browser slots.
		jobLimit: make(chan struct{}, 1),
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Post("/buildings/{id}/scrape", s.scrapeBuilding)
	r.Get("/jobs/{jobID}", s.getJob)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scrapeBuilding(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid building id")
		return
	}

	job := s.jobs.Start(id)
	go s.runJob(job.ID, id)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) runJob(jobID string, buildingID int64) {
	s.jobLimit <- struct{}{}
	defer func() { <-s.jobLimit }()

	ctx, cancel := context.WithTimeout(s.jobCtx, 5*time.Minute)
	defer cancel()

	out, err := s.scraper.ScrapeBuilding(ctx, buildingID)
	if err != nil {
		s.logger.Warn("async scrape failed",
			zap.String("job_id", jobID), zap.Int64("building_id", buildingID), zap.Error(err))
		s.jobs.Fail(jobID, err)
		return
	}
	s.jobs.Complete(jobID, out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

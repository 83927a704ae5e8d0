// Package api exposes the HTTP surface of the scoring service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lvonguyen/scamshield/internal/classifier"
	"github.com/lvonguyen/scamshield/internal/observability"
	"github.com/lvonguyen/scamshield/internal/reports"
)

// Pinger is implemented by stores with a remote backend; the readiness
// endpoint reports unready while the backend is down.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	analyzer  *classifier.Analyzer
	reports   *reports.Service
	limiter   *RateLimiter
	telemetry *observability.Telemetry
	logger    *zap.Logger
	readiness Pinger
	version   string
}

// NewServer wires the HTTP layer. readiness and limiter may be nil.
func NewServer(analyzer *classifier.Analyzer, reportSvc *reports.Service, limiter *RateLimiter,
	telemetry *observability.Telemetry, readiness Pinger, version string) *Server {
	return &Server{
		analyzer:  analyzer,
		reports:   reportSvc,
		limiter:   limiter,
		telemetry: telemetry,
		logger:    telemetry.Logger(),
		readiness: readiness,
		version:   version,
	}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.metricsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.telemetry.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware())
		}

		r.Post("/analyze/url", s.handleAnalyzeURL)
		r.Post("/analyze/email", s.handleAnalyzeEmail)
		r.Post("/analyze/phone", s.handleAnalyzePhone)
		r.Post("/analyze/batch", s.handleAnalyzeBatch)

		r.Post("/reports/url", s.handleSubmitReport)
		r.Post("/reports/review", s.handleReview)
		r.Get("/reports/stats", s.handleStats)
	})

	return r
}

// analyzeRequest is the body of the single-indicator endpoints.
type analyzeRequest struct {
	Value   string `json:"value"`
	Context string `json:"context,omitempty"`
}

func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Value == "" {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.analyzer.URL(r.Context(), req.Value, req.Context))
}

func (s *Server) handleAnalyzeEmail(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Value == "" {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.analyzer.Email(r.Context(), req.Value, req.Context))
}

func (s *Server) handleAnalyzePhone(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Value == "" {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.analyzer.Phone(r.Context(), req.Value, req.Context))
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req classifier.BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Size() == 0 {
		s.writeError(w, http.StatusBadRequest, "batch is empty")
		return
	}

	result, err := s.analyzer.Batch(r.Context(), req)
	if err != nil {
		if errors.Is(err, classifier.ErrBatchTooLarge) {
			s.writeError(w, http.StatusBadRequest, "batch exceeds 100 items")
			return
		}
		s.logger.Error("batch analysis failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "batch analysis failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req reports.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.reports.Submit(r.Context(), req)
	if err != nil {
		s.logger.Error("report submission failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return
	}
	// Rejections (banned, duplicate) are part of the contract: 200 with
	// success=false, never a server error.
	s.writeJSON(w, http.StatusOK, result)
}

// reviewRequest is the moderation payload.
type reviewRequest struct {
	URL      string `json:"url"`
	Decision string `json:"decision"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.reports.Review(r.Context(), req.URL, reports.Decision(req.Decision))
	if err != nil {
		switch {
		case errors.Is(err, reports.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "url has no reports")
		case errors.Is(err, reports.ErrStoreUnavailable):
			s.logger.Error("review failed", zap.Error(err))
			s.writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		default:
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		if err := s.readiness.Ping(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "report store unreachable",
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics := s.telemetry.Metrics()
		if metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		metrics.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/observability"
)

// Service is the report intake layer: it canonicalizes the reported URL,
// normalizes the threat type, and drives the Store.
type Service struct {
	store   Store
	norm    *indicator.Normalizer
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewService wires the report service. metrics may be nil.
func NewService(store Store, norm *indicator.Normalizer, logger *zap.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, norm: norm, logger: logger, metrics: metrics}
}

// SubmitRequest is the intake payload.
type SubmitRequest struct {
	URL         string `json:"url"`
	Domain      string `json:"domain,omitempty"`
	UserID      string `json:"user_id"`
	ThreatType  string `json:"threat_type"`
	Description string `json:"description,omitempty"`
}

// Validate checks the required fields.
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// Submit records one community report. Duplicate and banned-reporter
// outcomes come back as structured results with Success=false.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	normalized := strings.TrimSpace(req.URL)
	domain := strings.ToLower(strings.TrimSpace(req.Domain))

	if u, err := s.norm.URL(req.URL); err == nil {
		normalized = u.Normalized
		if domain == "" {
			domain = u.Domain
		}
	}

	rep := Report{
		URL:         normalized,
		URLHash:     HashURL(normalized),
		Domain:      domain,
		UserID:      strings.TrimSpace(req.UserID),
		ThreatType:  NormalizeThreatType(req.ThreatType),
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}

	result, err := s.store.Submit(ctx, rep)
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.logger.Info("report recorded",
			zap.String("url_hash", rep.URLHash),
			zap.String("threat_type", rep.ThreatType),
			zap.Int("url_score", result.URLScore),
			zap.Bool("is_new", result.IsNewReport))
		if s.metrics != nil {
			s.metrics.ReportsSubmitted.WithLabelValues(rep.ThreatType).Inc()
		}
	} else {
		s.logger.Info("report rejected",
			zap.String("url_hash", rep.URLHash),
			zap.String("reason", result.Rejection))
		if s.metrics != nil {
			s.metrics.ReportsRejected.WithLabelValues(result.Rejection).Inc()
		}
	}

	return result, nil
}

// Review applies a moderation decision to a reported URL.
func (s *Service) Review(ctx context.Context, rawURL string, decision Decision) (*ReviewResult, error) {
	if decision != DecisionConfirm && decision != DecisionReject {
		return nil, fmt.Errorf("invalid decision %q", decision)
	}

	normalized := strings.TrimSpace(rawURL)
	if u, err := s.norm.URL(rawURL); err == nil {
		normalized = u.Normalized
	}

	result, err := s.store.Review(ctx, HashURL(normalized), decision)
	if err != nil {
		return nil, err
	}

	s.logger.Info("review applied",
		zap.String("url_hash", result.URLHash),
		zap.String("status", string(result.Status)),
		zap.Int("reporters_adjusted", result.ReportersAdjusted),
		zap.Int("reporters_banned", result.ReportersBanned))
	if s.metrics != nil {
		s.metrics.ReviewDecisions.WithLabelValues(string(decision)).Inc()
		if result.ReportersBanned > 0 {
			s.metrics.UsersBanned.Add(float64(result.ReportersBanned))
		}
	}

	return result, nil
}

// Lookup returns the aggregate for a URL.
func (s *Service) Lookup(ctx context.Context, rawURL string) (*URLRecord, error) {
	normalized := strings.TrimSpace(rawURL)
	if u, err := s.norm.URL(rawURL); err == nil {
		normalized = u.Normalized
	}
	return s.store.GetURL(ctx, HashURL(normalized))
}

// Stats returns the aggregate counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

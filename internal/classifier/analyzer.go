package classifier

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/observability"
	"github.com/lvonguyen/scamshield/internal/reputation"
	"github.com/lvonguyen/scamshield/internal/rules"
)

// MaxBatchItems bounds a single batch request.
const MaxBatchItems = 100

// batchConcurrency bounds the analysis fan-out.
const batchConcurrency = 16

// ErrBatchTooLarge is returned when a batch exceeds MaxBatchItems.
var ErrBatchTooLarge = errors.New("batch exceeds maximum item count")

// Analyzer runs the full pipeline: normalize, reputation lookup,
// heuristic rules, classification.
type Analyzer struct {
	norm    *indicator.Normalizer
	refs    *reputation.Service
	eval    *rules.Evaluator
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAnalyzer wires the pipeline together. metrics may be nil.
func NewAnalyzer(refs *reputation.Service, logger *zap.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{
		norm:    indicator.NewNormalizer(refs),
		refs:    refs,
		eval:    rules.NewEvaluator(logger),
		logger:  logger,
		metrics: metrics,
	}
}

// URL analyzes a URL. Malformed input yields a structured medium
// assessment, never an error.
func (a *Analyzer) URL(ctx context.Context, raw, claimed string) *Analysis {
	start := time.Now()
	res := a.analyzeURL(ctx, raw, claimed)
	a.observe(res, start)
	return res
}

func (a *Analyzer) analyzeURL(ctx context.Context, raw, claimed string) *Analysis {
	out := &Analysis{
		Kind:       indicator.KindURL,
		Value:      raw,
		AnalyzedAt: time.Now().UTC(),
	}

	u, err := a.norm.URL(raw)
	if err != nil {
		return a.malformed(out, "Invalid URL format", 0.8)
	}
	out.Normalized = u.Normalized
	out.Domain = u.Domain

	verdict := a.lookup(ctx, out, func(ctx context.Context) (reputation.Verdict, error) {
		return a.refs.CheckDomain(ctx, u.Domain)
	})

	if verdict.KnownMalicious {
		out.IsMalicious = true
		out.ThreatLevel = LevelCritical
		out.Score = 0.99
		out.Confidence = 0.99
		out.ThreatTypes = []string{threatTypeString(verdict.ThreatType)}
		out.Reasons = []string{"Domain is on the known threat list"}
		out.Recommendations = []string{"Do not visit this site"}
		return out
	}
	if verdict.KnownSafe {
		out.ThreatLevel = LevelSafe
		out.Confidence = 0.95
		out.ThreatTypes = []string{"none"}
		out.Reasons = []string{"Domain is on the allow list"}
		return out
	}

	res := a.eval.URL(a.refs.Current(), u, claimed)
	out.Score = res.Score
	out.Reasons = res.Reasons()

	level, malicious := classify(res.Score)
	out.ThreatLevel = level
	out.IsMalicious = malicious
	out.ThreatTypes = threatTypesFromTags(res, level)
	out.Confidence = confidenceFor(level, len(out.ThreatTypes) == 0)

	// A shortener hides its destination: the floor is low/suspicious, but
	// heuristics that push the score higher are not discarded.
	if u.IsShortener {
		out.Reasons = append(out.Reasons, "Shortened URL, the destination cannot be verified")
		out.Recommendations = append(out.Recommendations, "Expand the link before clicking")
		if levelRank[out.ThreatLevel] <= levelRank[LevelLow] {
			out.ThreatLevel = LevelLow
			out.ThreatTypes = []string{"suspicious"}
			out.Confidence = 0.6
		}
	}

	if u.Scheme != "https" && !u.IsShortener {
		out.Reasons = append(out.Reasons, "Connection is not encrypted (no HTTPS)")
		if out.ThreatLevel == LevelSafe {
			out.ThreatLevel = LevelLow
			out.Recommendations = append(out.Recommendations, "Avoid entering credentials on pages without HTTPS")
		}
	}

	finishTypes(out)
	return out
}

// Email analyzes an email address.
func (a *Analyzer) Email(ctx context.Context, raw, claimed string) *Analysis {
	start := time.Now()
	res := a.analyzeEmail(ctx, raw, claimed)
	a.observe(res, start)
	return res
}

func (a *Analyzer) analyzeEmail(ctx context.Context, raw, claimed string) *Analysis {
	out := &Analysis{
		Kind:       indicator.KindEmail,
		Value:      raw,
		AnalyzedAt: time.Now().UTC(),
	}

	m, err := a.norm.Email(raw)
	if err != nil {
		return a.malformed(out, "Invalid email format", 0.9)
	}
	out.Normalized = m.Address
	out.Domain = m.Domain
	out.Email = m

	if m.Blacklisted {
		out.IsMalicious = true
		out.ThreatLevel = LevelHigh
		out.Score = 0.99
		out.Confidence = 0.99
		out.ThreatTypes = []string{"spam"}
		out.Reasons = []string{"Sender domain is block-listed"}
		out.Recommendations = []string{"Do not reply or click anything in this message"}
		return out
	}

	verdict := a.lookup(ctx, out, func(ctx context.Context) (reputation.Verdict, error) {
		return a.refs.CheckEmailDomain(ctx, m.Domain)
	})

	if verdict.KnownMalicious {
		out.IsMalicious = true
		out.ThreatLevel = LevelCritical
		out.Score = 0.99
		out.Confidence = 0.99
		out.ThreatTypes = []string{threatTypeString(verdict.ThreatType)}
		out.Reasons = []string{"Sender domain is on the known threat list"}
		out.Recommendations = []string{"Do not reply or click anything in this message"}
		return out
	}
	if verdict.KnownSafe {
		out.ThreatLevel = LevelSafe
		out.Confidence = 0.95
		out.ThreatTypes = []string{"none"}
		out.Reasons = []string{"Sender domain is on the allow list"}
		return out
	}

	res := a.eval.Email(a.refs.Current(), m, claimed)
	out.Score = res.Score
	out.Reasons = res.Reasons()

	level, malicious := classify(res.Score)
	out.ThreatLevel = level
	out.IsMalicious = malicious
	out.ThreatTypes = threatTypesFromTags(res, level)
	out.Confidence = confidenceFor(level, len(out.ThreatTypes) == 0)

	if m.Disposable {
		out.ThreatLevel = atLeast(out.ThreatLevel, LevelMedium)
		if out.Confidence < 0.95 {
			out.Confidence = 0.95
		}
		out.ThreatTypes = threatTypesFromTags(res, out.ThreatLevel)
		out.Recommendations = append(out.Recommendations,
			"Disposable addresses are rarely used for legitimate correspondence")
	}

	finishTypes(out)
	return out
}

// Phone analyzes a phone number.
func (a *Analyzer) Phone(ctx context.Context, raw, claimed string) *Analysis {
	start := time.Now()
	res := a.analyzePhone(ctx, raw, claimed)
	a.observe(res, start)
	return res
}

func (a *Analyzer) analyzePhone(ctx context.Context, raw, claimed string) *Analysis {
	out := &Analysis{
		Kind:       indicator.KindPhone,
		Value:      raw,
		AnalyzedAt: time.Now().UTC(),
	}

	p, err := a.norm.Phone(raw)
	if err != nil {
		return a.malformed(out, "Invalid phone number format", 0.8)
	}
	out.Normalized = p.Normalized
	out.Phone = p

	verdict := a.lookup(ctx, out, func(ctx context.Context) (reputation.Verdict, error) {
		return a.refs.CheckNumber(ctx, p.Normalized)
	})

	if verdict.KnownMalicious {
		out.IsMalicious = true
		out.ThreatLevel = LevelCritical
		out.Score = 0.99
		out.Confidence = 0.99
		out.ThreatTypes = []string{threatTypeString(verdict.ThreatType)}
		out.Reasons = []string{"Number is a known scam caller"}
		out.Recommendations = []string{"Do not answer or call back"}
		return out
	}

	res := a.eval.Phone(a.refs.Current(), p, claimed)
	out.Score = res.Score
	out.Reasons = res.Reasons()

	level, malicious := classify(res.Score)
	out.ThreatLevel = level
	out.IsMalicious = malicious
	out.ThreatTypes = threatTypesFromTags(res, level)
	out.Confidence = confidenceFor(level, len(out.ThreatTypes) == 0)

	if p.Premium {
		out.ThreatLevel = atLeast(out.ThreatLevel, LevelMedium)
		if out.Confidence < 0.9 {
			out.Confidence = 0.9
		}
		out.Recommendations = append(out.Recommendations,
			"Calling back will incur premium charges")
	}

	finishTypes(out)
	return out
}

// BatchRequest lists the indicators to analyze in one call.
type BatchRequest struct {
	URLs   []string `json:"urls,omitempty"`
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
}

// Size returns the total item count.
func (r BatchRequest) Size() int {
	return len(r.URLs) + len(r.Emails) + len(r.Phones)
}

// BatchSummary counts outcomes across a batch.
type BatchSummary struct {
	TotalAnalyzed   int `json:"total_analyzed"`
	MaliciousCount  int `json:"malicious_count"`
	SuspiciousCount int `json:"suspicious_count"`
	SafeCount       int `json:"safe_count"`
}

// BatchResult is the batch response body.
type BatchResult struct {
	Results []*Analysis  `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// Batch analyzes all items concurrently and preserves input order:
// URLs first, then emails, then phones.
func (a *Analyzer) Batch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	size := req.Size()
	if size > MaxBatchItems {
		return nil, ErrBatchTooLarge
	}
	if a.metrics != nil {
		a.metrics.BatchSize.Observe(float64(size))
	}

	results := make([]*Analysis, size)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	idx := 0
	for _, raw := range req.URLs {
		i, value := idx, raw
		idx++
		g.Go(func() error {
			results[i] = a.URL(gctx, value, "")
			return nil
		})
	}
	for _, raw := range req.Emails {
		i, value := idx, raw
		idx++
		g.Go(func() error {
			results[i] = a.Email(gctx, value, "")
			return nil
		})
	}
	for _, raw := range req.Phones {
		i, value := idx, raw
		idx++
		g.Go(func() error {
			results[i] = a.Phone(gctx, value, "")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchResult{Results: results}
	for _, res := range results {
		out.Summary.TotalAnalyzed++
		switch {
		case res.IsMalicious:
			out.Summary.MaliciousCount++
		case res.ThreatLevel == LevelMedium || res.ThreatLevel == LevelLow:
			out.Summary.SuspiciousCount++
		default:
			out.Summary.SafeCount++
		}
	}

	return out, nil
}

// lookup runs a reputation check under the configured timeout and
// degrades to an empty verdict on failure.
func (a *Analyzer) lookup(ctx context.Context, out *Analysis, fn func(context.Context) (reputation.Verdict, error)) reputation.Verdict {
	lctx, cancel := context.WithTimeout(ctx, a.refs.LookupTimeout())
	defer cancel()

	verdict, err := fn(lctx)
	if err != nil {
		out.LookupDegraded = true
		a.logger.Warn("reputation lookup degraded",
			zap.String("kind", string(out.Kind)), zap.Error(err))
		if a.metrics != nil {
			a.metrics.LookupDegraded.Inc()
		}
		return reputation.Verdict{}
	}
	return verdict
}

func (a *Analyzer) malformed(out *Analysis, reason string, confidence float64) *Analysis {
	out.ThreatLevel = LevelMedium
	out.ThreatTypes = []string{"suspicious"}
	out.Confidence = confidence
	out.Reasons = []string{reason}
	out.Recommendations = []string{"Check the value for typos and resubmit"}
	return out
}

func (a *Analyzer) observe(res *Analysis, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.AnalysesTotal.WithLabelValues(string(res.Kind), string(res.ThreatLevel)).Inc()
	a.metrics.AnalysisDuration.WithLabelValues(string(res.Kind)).Observe(time.Since(start).Seconds())
}

package reports

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used in tests and single-node
// deployments. A per-URL mutex serializes writers on the same hash while
// unrelated URLs proceed in parallel.
type MemoryStore struct {
	mu        sync.RWMutex
	urls      map[string]*URLRecord
	reporters map[string]*Reporter
	reported  map[string]map[string]bool // url hash -> reporter set
	reports   int

	keyMu sync.Map // url hash -> *sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		urls:      make(map[string]*URLRecord),
		reporters: make(map[string]*Reporter),
		reported:  make(map[string]map[string]bool),
	}
}

func (s *MemoryStore) lockKey(urlHash string) *sync.Mutex {
	mu, _ := s.keyMu.LoadOrStore(urlHash, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Submit applies one report. The duplicate check, counter updates, and
// score recompute happen under the URL key lock, so a submission is
// all-or-nothing.
func (s *MemoryStore) Submit(ctx context.Context, rep Report) (*SubmitResult, error) {
	keyLock := s.lockKey(rep.URLHash)
	keyLock.Lock()
	defer keyLock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	reporter := s.reporters[rep.UserID]
	if reporter == nil {
		reporter = &Reporter{UserID: rep.UserID, Trust: DefaultTrust}
		s.reporters[rep.UserID] = reporter
	}
	if reporter.Banned {
		return &SubmitResult{
			Message:   "Reporter is banned from submitting reports",
			Rejection: RejectionBanned,
		}, nil
	}

	seen := s.reported[rep.URLHash]
	if seen == nil {
		seen = make(map[string]bool)
		s.reported[rep.URLHash] = seen
	}
	if seen[rep.UserID] {
		return &SubmitResult{
			Message:   "You have already reported this URL",
			URLScore:  s.urls[rep.URLHash].Score,
			Rejection: RejectionDuplicate,
		}, nil
	}

	now := rep.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	record := s.urls[rep.URLHash]
	isNew := record == nil
	if isNew {
		record = &URLRecord{
			URLHash:       rep.URLHash,
			URL:           rep.URL,
			Domain:        rep.Domain,
			Status:        StatusPending,
			FirstReported: now,
		}
		s.urls[rep.URLHash] = record
	}

	seen[rep.UserID] = true
	record.ReportCount++
	record.TrustSum += reporter.Trust
	record.PrimaryThreatType = rep.ThreatType
	record.LastReported = now
	record.Score = AggregateScore(record.TrustSum, record.ReportCount)

	reporter.ReportCount++
	s.reports++

	return &SubmitResult{
		Success:     true,
		Message:     "Report recorded",
		URLScore:    record.Score,
		IsNewReport: isNew,
	}, nil
}

// Review applies a moderation decision and adjusts every reporter of the
// URL through the trust ledger.
func (s *MemoryStore) Review(ctx context.Context, urlHash string, decision Decision) (*ReviewResult, error) {
	keyLock := s.lockKey(urlHash)
	keyLock.Lock()
	defer keyLock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.urls[urlHash]
	if record == nil {
		return nil, ErrNotFound
	}

	result := &ReviewResult{URLHash: urlHash}
	switch decision {
	case DecisionConfirm:
		record.Status = StatusConfirmed
	case DecisionReject:
		record.Status = StatusRejected
	}
	result.Status = record.Status

	for userID := range s.reported[urlHash] {
		reporter := s.reporters[userID]
		if reporter == nil {
			continue
		}
		result.ReportersAdjusted++
		switch decision {
		case DecisionConfirm:
			reporter.Trust = clampTrust(reporter.Trust + ConfirmReward)
			reporter.ConfirmedCount++
		case DecisionReject:
			reporter.Trust = clampTrust(reporter.Trust - RejectPenalty)
			reporter.RejectedCount++
			// The ban is permanent, trust regained later does not lift it.
			if reporter.Trust < BanThreshold && !reporter.Banned {
				reporter.Banned = true
				result.ReportersBanned++
			}
		}
	}

	return result, nil
}

// GetURL returns the aggregate for one URL hash.
func (s *MemoryStore) GetURL(ctx context.Context, urlHash string) (*URLRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record := s.urls[urlHash]
	if record == nil {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// GetReporter returns one trust ledger entry.
func (s *MemoryStore) GetReporter(ctx context.Context, userID string) (*Reporter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reporter := s.reporters[userID]
	if reporter == nil {
		return nil, ErrNotFound
	}
	copied := *reporter
	return &copied, nil
}

// Stats counts URLs, reports, and reporters.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalURLs:      len(s.urls),
		TotalReports:   s.reports,
		TotalReporters: len(s.reporters),
	}
	for _, record := range s.urls {
		switch record.Status {
		case StatusPending:
			stats.PendingURLs++
		case StatusConfirmed:
			stats.ConfirmedURLs++
		case StatusRejected:
			stats.RejectedURLs++
		}
	}
	for _, reporter := range s.reporters {
		if reporter.Banned {
			stats.BannedReporters++
		}
	}
	return stats, nil
}

// Package reports implements community URL reporting: the report
// aggregator, the reporter trust ledger, and its storage backends.
package reports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"
)

var (
	// ErrNotFound means the URL or reporter does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("report store unavailable")
)

// Trust ledger constants. A reporter starts at DefaultTrust, gains
// ConfirmReward per confirmed report up to MaxTrust, loses RejectPenalty
// per rejected report down to MinTrust, and is banned permanently once
// trust falls below BanThreshold.
const (
	DefaultTrust  = 50
	MaxTrust      = 100
	MinTrust      = 0
	ConfirmReward = 3
	RejectPenalty = 10
	BanThreshold  = 10
)

// Status of a reported URL.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Decision is a moderator review outcome.
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionReject  Decision = "reject"
)

// threatTypes is the closed set a report may carry; anything else is
// normalized to other.
var threatTypes = map[string]bool{
	"phishing": true,
	"malware":  true,
	"scam":     true,
	"spam":     true,
	"vishing":  true,
	"smishing": true,
	"other":    true,
}

// NormalizeThreatType folds arbitrary input into the closed threat set.
func NormalizeThreatType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if threatTypes[t] {
		return t
	}
	return "other"
}

// HashURL derives the storage key for a URL: SHA-256 of the trimmed,
// lowercased value. Reports for the same URL always land on one key.
func HashURL(normalized string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(normalized))))
	return hex.EncodeToString(sum[:])
}

// Report is one community submission.
type Report struct {
	URL         string    `json:"url"`
	URLHash     string    `json:"url_hash"`
	Domain      string    `json:"domain"`
	UserID      string    `json:"user_id"`
	ThreatType  string    `json:"threat_type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// URLRecord is the aggregated state for one reported URL.
type URLRecord struct {
	URLHash           string    `json:"url_hash"`
	URL               string    `json:"url"`
	Domain            string    `json:"domain"`
	Status            Status    `json:"status"`
	ReportCount       int       `json:"report_count"`
	TrustSum          int       `json:"-"`
	Score             int       `json:"score"`
	PrimaryThreatType string    `json:"primary_threat_type"`
	FirstReported     time.Time `json:"first_reported"`
	LastReported      time.Time `json:"last_reported"`
}

// Reporter is one trust ledger entry.
type Reporter struct {
	UserID         string `json:"user_id"`
	Trust          int    `json:"trust"`
	Banned         bool   `json:"banned"`
	ReportCount    int    `json:"report_count"`
	ConfirmedCount int    `json:"confirmed_count"`
	RejectedCount  int    `json:"rejected_count"`
}

// SubmitResult is the structured outcome of a submission. Rejections
// (banned reporter, duplicate) are results, not errors.
type SubmitResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	URLScore    int    `json:"url_score"`
	IsNewReport bool   `json:"is_new_report"`
	Rejection   string `json:"-"`
}

// Rejection reasons surfaced in metrics.
const (
	RejectionBanned    = "reporter_banned"
	RejectionDuplicate = "duplicate_report"
)

// ReviewResult summarizes an applied moderation decision.
type ReviewResult struct {
	URLHash           string `json:"url_hash"`
	Status            Status `json:"status"`
	ReportersAdjusted int    `json:"reporters_adjusted"`
	ReportersBanned   int    `json:"reporters_banned"`
}

// Stats are the aggregate counters for the stats endpoint.
type Stats struct {
	TotalURLs       int `json:"total_urls"`
	PendingURLs     int `json:"pending_urls"`
	ConfirmedURLs   int `json:"confirmed_urls"`
	RejectedURLs    int `json:"rejected_urls"`
	TotalReports    int `json:"total_reports"`
	TotalReporters  int `json:"total_reporters"`
	BannedReporters int `json:"banned_reporters"`
}

// Store persists reports, URL aggregates, and the trust ledger.
// Implementations guarantee at most one concurrent writer per URL hash
// and make the duplicate check atomic with the insert.
type Store interface {
	Submit(ctx context.Context, rep Report) (*SubmitResult, error)
	Review(ctx context.Context, urlHash string, decision Decision) (*ReviewResult, error)
	GetURL(ctx context.Context, urlHash string) (*URLRecord, error)
	GetReporter(ctx context.Context, userID string) (*Reporter, error)
	Stats(ctx context.Context) (*Stats, error)
}

// multiplier discounts low-volume aggregates: one report can never push
// a URL into a high band on its own.
func multiplier(n int) float64 {
	switch {
	case n <= 1:
		return 0.3
	case n == 2:
		return 0.5
	case n <= 4:
		return 0.6
	case n <= 9:
		return 0.7
	case n <= 19:
		return 0.85
	default:
		return 1.0
	}
}

// scoreCap bounds the aggregate score by report volume.
func scoreCap(n int) int {
	switch {
	case n <= 1:
		return 30
	case n == 2:
		return 45
	case n <= 4:
		return 60
	case n <= 9:
		return 75
	default:
		return 100
	}
}

// AggregateScore computes the 0-100 community score from the reporter
// trust sum and report count.
func AggregateScore(trustSum, reportCount int) int {
	if reportCount <= 0 {
		return 0
	}
	avg := float64(trustSum) / float64(reportCount)
	score := int(math.Round(avg * multiplier(reportCount)))
	if limit := scoreCap(reportCount); score > limit {
		return limit
	}
	return score
}

// clampTrust bounds a trust value to the ledger range.
func clampTrust(trust int) int {
	if trust > MaxTrust {
		return MaxTrust
	}
	if trust < MinTrust {
		return MinTrust
	}
	return trust
}

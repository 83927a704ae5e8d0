package reports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/reputation"
)

// ============================================================
// Aggregate score
// ============================================================

func TestAggregateScoreBands(t *testing.T) {
	tests := []struct {
		name     string
		trustSum int
		count    int
		want     int
	}{
		{"single default-trust reporter", 50, 1, 15},
		{"single high-trust reporter", 80, 1, 24},
		{"single max-trust reporter capped", 100, 1, 30},
		{"two reporters avg 70", 140, 2, 35},
		{"two max-trust reporters capped", 200, 2, 45},
		{"four reporters", 320, 4, 48},
		{"nine reporters", 900, 9, 70},
		{"nineteen reporters", 1900, 19, 85},
		{"twenty reporters full weight", 2000, 20, 100},
		{"zero reports", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateScore(tt.trustSum, tt.count); got != tt.want {
				t.Errorf("AggregateScore(%d, %d) = %d, want %d", tt.trustSum, tt.count, got, tt.want)
			}
		})
	}
}

func TestAggregateScoreNeverExceedsCap(t *testing.T) {
	// The volume cap binds regardless of reporter trust.
	for count := 1; count <= 30; count++ {
		score := AggregateScore(count*MaxTrust, count)
		if limit := scoreCap(count); score > limit {
			t.Errorf("count %d: score %d exceeds cap %d", count, score, limit)
		}
	}
}

func TestNormalizeThreatType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"phishing", "phishing"},
		{" SMISHING ", "smishing"},
		{"ransomware", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := NormalizeThreatType(tt.in); got != tt.want {
			t.Errorf("NormalizeThreatType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashURLStable(t *testing.T) {
	a := HashURL("https://example.com/x")
	b := HashURL("  HTTPS://EXAMPLE.COM/x ")
	if a != b {
		t.Error("hash must ignore case and surrounding whitespace")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

// ============================================================
// Memory store: submissions
// ============================================================

func submit(t *testing.T, s Store, urlHash, user string) *SubmitResult {
	t.Helper()
	res, err := s.Submit(context.Background(), Report{
		URL:        "https://" + urlHash + ".example",
		URLHash:    urlHash,
		Domain:     urlHash + ".example",
		UserID:     user,
		ThreatType: "phishing",
	})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestSubmitFirstReport(t *testing.T) {
	s := NewMemoryStore()

	res := submit(t, s, "h1", "alice")
	if !res.Success || !res.IsNewReport {
		t.Fatalf("result = %+v, want new successful report", res)
	}
	// Default trust 50, one report: round(50 * 0.3) = 15.
	if res.URLScore != 15 {
		t.Errorf("score = %d, want 15", res.URLScore)
	}

	record, err := s.GetURL(context.Background(), "h1")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != StatusPending || record.ReportCount != 1 {
		t.Errorf("record = %+v", record)
	}
	if record.PrimaryThreatType != "phishing" {
		t.Errorf("primary threat type = %q", record.PrimaryThreatType)
	}
}

func TestSubmitDuplicateRejected(t *testing.T) {
	s := NewMemoryStore()

	submit(t, s, "h1", "alice")
	res := submit(t, s, "h1", "alice")

	if res.Success {
		t.Fatal("duplicate must not succeed")
	}
	if res.Rejection != RejectionDuplicate {
		t.Errorf("rejection = %q, want %q", res.Rejection, RejectionDuplicate)
	}

	record, _ := s.GetURL(context.Background(), "h1")
	if record.ReportCount != 1 {
		t.Errorf("duplicate changed report count: %d", record.ReportCount)
	}
}

func TestSubmitSecondReporterRaisesScore(t *testing.T) {
	s := NewMemoryStore()

	submit(t, s, "h1", "alice")
	res := submit(t, s, "h1", "bob")

	if res.IsNewReport {
		t.Error("second report is not new")
	}
	// Two default-trust reporters: round(50 * 0.5) = 25.
	if res.URLScore != 25 {
		t.Errorf("score = %d, want 25", res.URLScore)
	}
}

func TestSubmitLastWriteWinsThreatType(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Submit(ctx, Report{URLHash: "h1", URL: "u", UserID: "alice", ThreatType: "phishing"})
	s.Submit(ctx, Report{URLHash: "h1", URL: "u", UserID: "bob", ThreatType: "scam"})

	record, _ := s.GetURL(ctx, "h1")
	if record.PrimaryThreatType != "scam" {
		t.Errorf("primary threat type = %q, want scam (last write wins)", record.PrimaryThreatType)
	}
}

// ============================================================
// Trust ledger and review
// ============================================================

func TestReviewConfirmRewardsReporters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	submit(t, s, "h1", "alice")
	submit(t, s, "h1", "bob")

	res, err := s.Review(ctx, "h1", DecisionConfirm)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusConfirmed || res.ReportersAdjusted != 2 {
		t.Errorf("result = %+v", res)
	}

	alice, _ := s.GetReporter(ctx, "alice")
	if alice.Trust != DefaultTrust+ConfirmReward {
		t.Errorf("trust = %d, want %d", alice.Trust, DefaultTrust+ConfirmReward)
	}
	if alice.ConfirmedCount != 1 {
		t.Errorf("confirmed count = %d", alice.ConfirmedCount)
	}
}

func TestReviewRejectPenalizesReporters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	submit(t, s, "h1", "alice")
	if _, err := s.Review(ctx, "h1", DecisionReject); err != nil {
		t.Fatal(err)
	}

	alice, _ := s.GetReporter(ctx, "alice")
	if alice.Trust != DefaultTrust-RejectPenalty {
		t.Errorf("trust = %d, want %d", alice.Trust, DefaultTrust-RejectPenalty)
	}
	if alice.Banned {
		t.Error("one rejection must not ban a default-trust reporter")
	}
}

func TestTrustClampsAtBounds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// 20 confirmations push well past the ceiling.
	for i := 0; i < 20; i++ {
		hash := fmt.Sprintf("up%d", i)
		submit(t, s, hash, "alice")
		s.Review(ctx, hash, DecisionConfirm)
	}
	alice, _ := s.GetReporter(ctx, "alice")
	if alice.Trust != MaxTrust {
		t.Errorf("trust = %d, want clamp at %d", alice.Trust, MaxTrust)
	}
}

func TestRepeatedRejectionsBanReporter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// 50 -> 40 -> 30 -> 20 -> 10 -> 0; the ban triggers below 10.
	var banned int
	for i := 0; i < 5; i++ {
		hash := fmt.Sprintf("down%d", i)
		submit(t, s, hash, "mallory")
		res, err := s.Review(ctx, hash, DecisionReject)
		if err != nil {
			t.Fatal(err)
		}
		banned += res.ReportersBanned
	}

	mallory, _ := s.GetReporter(ctx, "mallory")
	if !mallory.Banned {
		t.Fatalf("reporter not banned at trust %d", mallory.Trust)
	}
	if banned != 1 {
		t.Errorf("ban counted %d times, want once", banned)
	}

	// A banned reporter gets a structured rejection, never an error.
	res := submit(t, s, "new-url", "mallory")
	if res.Success || res.Rejection != RejectionBanned {
		t.Errorf("result = %+v, want banned rejection", res)
	}
}

func TestReviewUnknownURL(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Review(context.Background(), "missing", DecisionConfirm); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ============================================================
// Stats
// ============================================================

func TestStatsCounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	submit(t, s, "h1", "alice")
	submit(t, s, "h1", "bob")
	submit(t, s, "h2", "alice")
	s.Review(ctx, "h1", DecisionConfirm)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalURLs != 2 || stats.TotalReports != 3 || stats.TotalReporters != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ConfirmedURLs != 1 || stats.PendingURLs != 1 {
		t.Errorf("status counts = %+v", stats)
	}
}

// ============================================================
// Concurrency
// ============================================================

func TestConcurrentSubmissionsOneURL(t *testing.T) {
	s := NewMemoryStore()
	const reporters = 50

	var wg sync.WaitGroup
	for i := 0; i < reporters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submitNoFail(s, "hot", fmt.Sprintf("user%d", i))
		}(i)
	}
	wg.Wait()

	record, err := s.GetURL(context.Background(), "hot")
	if err != nil {
		t.Fatal(err)
	}
	if record.ReportCount != reporters {
		t.Errorf("report count = %d, want %d", record.ReportCount, reporters)
	}
	if record.Score != AggregateScore(record.TrustSum, record.ReportCount) {
		t.Errorf("stored score %d diverges from recompute", record.Score)
	}
}

func submitNoFail(s Store, urlHash, user string) {
	s.Submit(context.Background(), Report{
		URL: "https://hot.example", URLHash: urlHash, Domain: "hot.example",
		UserID: user, ThreatType: "scam",
	})
}

// ============================================================
// Service layer
// ============================================================

func newTestService(t *testing.T) *Service {
	t.Helper()
	refs, err := reputation.NewService(reputation.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewService(NewMemoryStore(), indicator.NewNormalizer(refs), zap.NewNop(), nil)
}

func TestServiceSubmitCanonicalizesURL(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, SubmitRequest{URL: "https://Evil-Site.com/x", UserID: "alice", ThreatType: "phishing"})
	if err != nil {
		t.Fatal(err)
	}
	if !first.Success {
		t.Fatalf("result = %+v", first)
	}

	// Same URL with different casing lands on the same aggregate.
	second, err := svc.Submit(ctx, SubmitRequest{URL: "HTTPS://evil-site.COM/x", UserID: "alice", ThreatType: "phishing"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Success || second.Rejection != RejectionDuplicate {
		t.Errorf("result = %+v, want duplicate rejection", second)
	}
}

func TestServiceReviewAndLookup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.Submit(ctx, SubmitRequest{URL: "https://bad.example/p", UserID: "alice", ThreatType: "scam"})

	res, err := svc.Review(ctx, "https://bad.example/p", DecisionConfirm)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusConfirmed {
		t.Errorf("status = %q", res.Status)
	}

	record, err := svc.Lookup(ctx, "https://bad.example/p")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != StatusConfirmed {
		t.Errorf("looked-up status = %q", record.Status)
	}
}

func TestServiceRejectsInvalidDecision(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Review(context.Background(), "https://x.example", Decision("maybe")); err == nil {
		t.Fatal("expected error for invalid decision")
	}
}

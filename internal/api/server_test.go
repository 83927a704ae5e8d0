package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lvonguyen/scamshield/internal/classifier"
	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/observability"
	"github.com/lvonguyen/scamshield/internal/reports"
	"github.com/lvonguyen/scamshield/internal/reputation"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	tel, err := observability.New(observability.Config{
		ServiceName: "scamshield-test",
		LogLevel:    "error",
	})
	if err != nil {
		t.Fatal(err)
	}

	refs, err := reputation.NewService(reputation.DefaultConfig(), tel.Logger())
	if err != nil {
		t.Fatal(err)
	}

	analyzer := classifier.NewAnalyzer(refs, tel.Logger(), nil)
	reportSvc := reports.NewService(reports.NewMemoryStore(), indicator.NewNormalizer(refs), tel.Logger(), nil)

	srv := NewServer(analyzer, reportSvc, nil, tel, nil, "test")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatal(err)
	}
}

// ============================================================
// Analyze endpoints
// ============================================================

func TestAnalyzeURLEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/analyze/url", map[string]string{
		"value": "http://phishing-site.net/login",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		IsMalicious bool     `json:"is_malicious"`
		ThreatLevel string   `json:"threat_level"`
		ThreatTypes []string `json:"threat_types"`
		Confidence  float64  `json:"confidence"`
	}
	decodeBody(t, resp, &body)

	if !body.IsMalicious || body.ThreatLevel != "critical" {
		t.Errorf("body = %+v", body)
	}
}

func TestAnalyzeURLMalformedIsNotAnError(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/analyze/url", map[string]string{"value": "::: not a url :::"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, malformed input must yield an assessment", resp.StatusCode)
	}

	var body struct {
		ThreatLevel string `json:"threat_level"`
	}
	decodeBody(t, resp, &body)
	if body.ThreatLevel != "medium" {
		t.Errorf("level = %q, want medium", body.ThreatLevel)
	}
}

func TestAnalyzeMissingValue(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/analyze/url", "/api/v1/analyze/email", "/api/v1/analyze/phone"} {
		resp := postJSON(t, ts.URL+path, map[string]string{})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestAnalyzePhoneEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/analyze/phone", map[string]string{
		"value":   "+34 803 123 456",
		"context": "llamada sobre un premio",
	})

	var body struct {
		ThreatLevel string   `json:"threat_level"`
		ThreatTypes []string `json:"threat_types"`
		Phone       struct {
			NumberType string `json:"number_type"`
		} `json:"phone"`
	}
	decodeBody(t, resp, &body)

	if body.Phone.NumberType != "premium" {
		t.Errorf("number type = %q", body.Phone.NumberType)
	}
	if body.ThreatLevel == "safe" {
		t.Errorf("level = %q", body.ThreatLevel)
	}
}

func TestBatchEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/analyze/batch", map[string]any{
		"urls":   []string{"http://phishing-site.net/a", "https://github.com/x"},
		"emails": []string{"x@mailinator.com"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Results []json.RawMessage `json:"results"`
		Summary struct {
			TotalAnalyzed  int `json:"total_analyzed"`
			MaliciousCount int `json:"malicious_count"`
		} `json:"summary"`
	}
	decodeBody(t, resp, &body)

	if body.Summary.TotalAnalyzed != 3 || len(body.Results) != 3 {
		t.Errorf("summary = %+v, results = %d", body.Summary, len(body.Results))
	}
	if body.Summary.MaliciousCount != 1 {
		t.Errorf("malicious = %d, want 1", body.Summary.MaliciousCount)
	}
}

func TestBatchTooLargeRejected(t *testing.T) {
	ts := newTestServer(t)

	urls := make([]string, classifier.MaxBatchItems+1)
	for i := range urls {
		urls[i] = "https://example.com/"
	}

	resp := postJSON(t, ts.URL+"/api/v1/analyze/batch", map[string]any{"urls": urls})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/analyze/url", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ============================================================
// Report endpoints
// ============================================================

func TestReportLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// First report.
	resp := postJSON(t, ts.URL+"/api/v1/reports/url", map[string]string{
		"url":         "https://fraudulent.example/pay",
		"user_id":     "alice",
		"threat_type": "phishing",
	})
	var first reports.SubmitResult
	decodeBody(t, resp, &first)
	if !first.Success || !first.IsNewReport || first.URLScore != 15 {
		t.Fatalf("first = %+v", first)
	}

	// Duplicate from the same user: structured rejection, still 200.
	resp = postJSON(t, ts.URL+"/api/v1/reports/url", map[string]string{
		"url":         "https://fraudulent.example/pay",
		"user_id":     "alice",
		"threat_type": "phishing",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate status = %d, want 200", resp.StatusCode)
	}
	var dup reports.SubmitResult
	decodeBody(t, resp, &dup)
	if dup.Success {
		t.Fatalf("duplicate = %+v", dup)
	}

	// Second reporter raises the aggregate.
	resp = postJSON(t, ts.URL+"/api/v1/reports/url", map[string]string{
		"url":         "https://fraudulent.example/pay",
		"user_id":     "bob",
		"threat_type": "scam",
	})
	var second reports.SubmitResult
	decodeBody(t, resp, &second)
	if second.URLScore != 25 {
		t.Errorf("score = %d, want 25", second.URLScore)
	}

	// Moderation confirm.
	resp = postJSON(t, ts.URL+"/api/v1/reports/review", map[string]string{
		"url":      "https://fraudulent.example/pay",
		"decision": "confirm",
	})
	var review reports.ReviewResult
	decodeBody(t, resp, &review)
	if review.Status != reports.StatusConfirmed || review.ReportersAdjusted != 2 {
		t.Errorf("review = %+v", review)
	}

	// Stats reflect the activity.
	statsResp, err := http.Get(ts.URL + "/api/v1/reports/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats reports.Stats
	decodeBody(t, statsResp, &stats)
	if stats.TotalURLs != 1 || stats.TotalReports != 2 || stats.ConfirmedURLs != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReportMissingFields(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/reports/url", map[string]string{"url": "https://x.example"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReviewUnknownURL(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/reports/review", map[string]string{
		"url":      "https://never-reported.example",
		"decision": "confirm",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReviewInvalidDecision(t *testing.T) {
	ts := newTestServer(t)

	postJSON(t, ts.URL+"/api/v1/reports/url", map[string]string{
		"url": "https://x.example", "user_id": "alice", "threat_type": "scam",
	}).Body.Close()

	resp := postJSON(t, ts.URL+"/api/v1/reports/review", map[string]string{
		"url":      "https://x.example",
		"decision": "maybe",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ============================================================
// Health and readiness
// ============================================================

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return fmt.Errorf("down") }

func TestReadyEndpointReportsBackendOutage(t *testing.T) {
	tel, err := observability.New(observability.Config{ServiceName: "scamshield-test", LogLevel: "error"})
	if err != nil {
		t.Fatal(err)
	}
	refs, err := reputation.NewService(reputation.DefaultConfig(), tel.Logger())
	if err != nil {
		t.Fatal(err)
	}

	analyzer := classifier.NewAnalyzer(refs, tel.Logger(), nil)
	reportSvc := reports.NewService(reports.NewMemoryStore(), indicator.NewNormalizer(refs), tel.Logger(), nil)

	srv := NewServer(analyzer, reportSvc, nil, tel, failingPinger{}, "test")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

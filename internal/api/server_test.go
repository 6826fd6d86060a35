package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/backend"
	"github.com/dshills/refract/internal/config"
	"github.com/dshills/refract/internal/github"
	"github.com/dshills/refract/internal/review"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(config.Default(), "test", zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header on every response")
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Decoding health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Status = %q, want %q", health.Status, "ok")
	}
	if health.Version != "test" {
		t.Errorf("Version = %q, want %q", health.Version, "test")
	}
	if health.ReviewsServed != 0 {
		t.Errorf("ReviewsServed = %d, want 0", health.ReviewsServed)
	}
}

func TestHealthz_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/healthz", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", resp.StatusCode)
	}
}

func TestScore(t *testing.T) {
	_, ts := newTestServer(t)

	body := `{"findings": [
		{"file": "main.go", "severity": "blocking", "category": "security", "message": "injection", "confidence": 0.9},
		{"file": "util.go", "severity": "nit", "category": "style", "message": "naming", "confidence": 0.5}
	]}`
	resp, err := http.Post(ts.URL+"/v1/score", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/score error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var scored ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		t.Fatalf("Decoding score response: %v", err)
	}
	if scored.Policy != "weighted" {
		t.Errorf("Policy = %q, want %q", scored.Policy, "weighted")
	}
	if scored.Score != 74 {
		t.Errorf("Score = %v, want 74 (100 - 25 blocking - 1 nit)", scored.Score)
	}
	if scored.Stats.Blocking != 1 || scored.Stats.Nit != 1 || scored.Stats.Total != 2 {
		t.Errorf("Stats = %+v, want 1 blocking, 1 nit, 2 total", scored.Stats)
	}
}

func TestScore_EmptyFindings(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/score", "application/json", strings.NewReader(`{"findings": []}`))
	if err != nil {
		t.Fatalf("POST /v1/score error: %v", err)
	}
	defer resp.Body.Close()

	var scored ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		t.Fatalf("Decoding score response: %v", err)
	}
	if scored.Score != 100 {
		t.Errorf("Score = %v, want 100 for an empty finding list", scored.Score)
	}
}

func TestScore_BadJSON(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/score", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /v1/score error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	var fail errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&fail); err != nil {
		t.Fatalf("Decoding error response: %v", err)
	}
	if !strings.Contains(fail.Error, "invalid JSON") {
		t.Errorf("Error = %q, want mention of invalid JSON", fail.Error)
	}
}

func TestReview_StubbedPipeline(t *testing.T) {
	s, ts := newTestServer(t)
	s.runReview = func(_ context.Context, ref github.PRRef, guidelines, backendName string) (*review.Report, error) {
		if ref.String() != "dshills/refract#42" {
			t.Errorf("ref = %s, want dshills/refract#42", ref)
		}
		if guidelines != "focus on errors" {
			t.Errorf("guidelines = %q", guidelines)
		}
		if backendName != "hosted-chat" {
			t.Errorf("backendName = %q", backendName)
		}
		findings := []review.Finding{
			{File: "main.go", Severity: review.SeverityMajor, Category: review.CategoryCorrectness, Message: "nil deref", Confidence: 0.8, LineHint: 7},
		}
		return review.BuildReport("test", findings, review.DefaultPolicy()), nil
	}

	body := `{"pr_url": "dshills/refract#42", "guidelines": "focus on errors", "backend": "hosted-chat"}`
	resp, err := http.Post(ts.URL+"/v1/review", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/review error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var report review.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("Decoding report: %v", err)
	}
	if report.Tool != "refract" {
		t.Errorf("Tool = %q, want refract", report.Tool)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("Findings = %d, want 1", len(report.Findings))
	}
	if report.Score != 90 {
		t.Errorf("Score = %v, want 90", report.Score)
	}

	// The counters should reflect the served review.
	snap := s.metrics.snapshot()
	if snap.reviewsServed != 1 {
		t.Errorf("reviewsServed = %d, want 1", snap.reviewsServed)
	}
	if snap.findingsEmitted != 1 {
		t.Errorf("findingsEmitted = %d, want 1", snap.findingsEmitted)
	}
	if snap.lastReview.IsZero() {
		t.Error("lastReview should be set after a served review")
	}
}

func TestReview_MissingPRURL(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/review", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /v1/review error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	var fail errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&fail); err != nil {
		t.Fatalf("Decoding error response: %v", err)
	}
	if !strings.Contains(fail.Error, "pr_url is required") {
		t.Errorf("Error = %q, want pr_url requirement", fail.Error)
	}
}

func TestReview_BadRef(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/review", "application/json",
		strings.NewReader(`{"pr_url": "not-a-pull-request"}`))
	if err != nil {
		t.Fatalf("POST /v1/review error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for an unparseable reference", resp.StatusCode)
	}
}

func TestReview_PipelineError(t *testing.T) {
	s, ts := newTestServer(t)
	s.runReview = func(context.Context, github.PRRef, string, string) (*review.Report, error) {
		return nil, errors.New("GitHub API error (status 500): boom")
	}

	resp, err := http.Post(ts.URL+"/v1/review", "application/json",
		strings.NewReader(`{"pr_url": "dshills/refract#1"}`))
	if err != nil {
		t.Fatalf("POST /v1/review error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502 for a pipeline failure", resp.StatusCode)
	}
	if snap := s.metrics.snapshot(); snap.reviewErrors != 1 {
		t.Errorf("reviewErrors = %d, want 1", snap.reviewErrors)
	}
}

func TestReview_UnknownBackendIsClientError(t *testing.T) {
	s, ts := newTestServer(t)
	s.runReview = func(context.Context, github.PRRef, string, string) (*review.Report, error) {
		return nil, &backend.ConfigError{Name: "mainframe", Reason: "unknown backend"}
	}

	resp, err := http.Post(ts.URL+"/v1/review", "application/json",
		strings.NewReader(`{"pr_url": "dshills/refract#1", "backend": "mainframe"}`))
	if err != nil {
		t.Fatalf("POST /v1/review error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for a backend config error", resp.StatusCode)
	}
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/no/such/path")
	if err != nil {
		t.Fatalf("GET /no/such/path error: %v", err)
	}
	defer missing.Body.Close()

	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Status = %d, want 404 for unknown paths", missing.StatusCode)
	}
}

func TestRun_ShutdownOnCancel(t *testing.T) {
	s := NewServer(config.Default(), "test", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	// Give the listener a moment to come up before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after cancel, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down after context cancel")
	}
}

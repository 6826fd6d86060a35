package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/refract/internal/backend"
	"github.com/dshills/refract/internal/cache"
	"github.com/dshills/refract/internal/config"
	"github.com/dshills/refract/internal/github"
	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/review"
)

const (
	readTimeout = 30 * time.Second
	// A review response blocks until the whole pipeline finishes, so the
	// write window has to cover a full review of a large pull request.
	writeTimeout  = 10 * time.Minute
	idleTimeout   = 2 * time.Minute
	shutdownGrace = 15 * time.Second

	maxBodyBytes = 1 << 20
)

// Server exposes the review pipeline over HTTP: POST /v1/review runs a full
// pull request review, POST /v1/score recomputes stats and score for a
// posted finding list, and GET /healthz reports liveness with run counters.
type Server struct {
	cfg     config.Config
	logger  *zap.Logger
	version string
	metrics metrics

	// runReview is the pipeline seam. Tests replace it so handler behavior
	// can be exercised without GitHub or model traffic.
	runReview func(ctx context.Context, ref github.PRRef, guidelines, backendName string) (*review.Report, error)
}

// NewServer builds a Server around an effective config. A nil logger
// disables logging.
func NewServer(cfg config.Config, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		version: version,
		metrics: metrics{started: time.Now()},
	}
	s.runReview = s.reviewPR
	return s
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/review", s.handleReview)
	mux.HandleFunc("/v1/score", s.handleScore)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "refract review API\n\nPOST /v1/review\nPOST /v1/score\nGET  /healthz\n")
	})
	return s.withRequestLog(mux)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// and returns. Any other non-nil return means the listener failed.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", zap.String("addr", addr))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return <-errCh
}

// statusRecorder captures the status a handler writes so the request log can
// include it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// ReviewRequest is the body of POST /v1/review. Guidelines carries inline
// prompt text; Backend overrides the configured backend for this request
// only, dropping any configured fallback chain.
type ReviewRequest struct {
	PRURL      string `json:"pr_url"`
	Guidelines string `json:"guidelines,omitempty"`
	Backend    string `json:"backend,omitempty"`
}

// ScoreRequest is the body of POST /v1/score.
type ScoreRequest struct {
	Findings []review.Finding `json:"findings"`
}

// ScoreResponse carries recomputed aggregate stats and the policy score for
// a posted finding list.
type ScoreResponse struct {
	Policy string             `json:"policy"`
	Score  float64            `json:"score"`
	Stats  review.ReviewStats `json:"stats"`
}

type healthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	UptimeSec       int64  `json:"uptime_sec"`
	ReviewsServed   int    `json:"reviews_served"`
	ReviewErrors    int    `json:"review_errors"`
	FindingsEmitted int    `json:"findings_emitted"`
	LastReview      string `json:"last_review,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req ReviewRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.PRURL == "" {
		writeError(w, http.StatusBadRequest, "pr_url is required")
		return
	}
	ref, err := github.ParsePR(req.PRURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.runReview(r.Context(), ref, req.Guidelines, req.Backend)
	if err != nil {
		s.metrics.recordError()
		s.logger.Error("review failed",
			zap.String("pr", ref.String()),
			zap.Error(err))
		var ce *backend.ConfigError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.metrics.recordReview(len(report.Findings))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req ScoreRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	policy := review.DefaultPolicy()
	stats := review.Aggregate(req.Findings)
	writeJSON(w, http.StatusOK, ScoreResponse{
		Policy: policy.Name(),
		Score:  policy.Score(stats),
		Stats:  stats,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	snap := s.metrics.snapshot()
	resp := healthResponse{
		Status:          "ok",
		Version:         s.version,
		UptimeSec:       int64(time.Since(snap.started).Seconds()),
		ReviewsServed:   snap.reviewsServed,
		ReviewErrors:    snap.reviewErrors,
		FindingsEmitted: snap.findingsEmitted,
	}
	if !snap.lastReview.IsZero() {
		resp.LastReview = snap.lastReview.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// reviewPR is the real pipeline: fetch the pull request, extract and filter
// hunks, fan out to the backend, and assemble the report.
func (s *Server) reviewPR(ctx context.Context, ref github.PRRef, guidelines, backendName string) (*review.Report, error) {
	cfg := s.cfg
	if backendName != "" {
		cfg.Backend = backendName
		cfg.Fallbacks = nil
	}

	pack := &review.Guidelines{Text: guidelines}
	if guidelines == "" {
		loaded, err := review.LoadGuidelines(cfg.Guidelines)
		if err != nil {
			return nil, err
		}
		pack = loaded
	}

	be, err := backend.FromConfig(cfg, s.logger)
	if err != nil {
		return nil, err
	}

	gh, err := github.NewClient(ctx, cfg.GitHub.APIBase, s.logger)
	if err != nil {
		return nil, err
	}

	fetchStart := time.Now()
	bundle, err := gh.FetchBundle(ctx, ref)
	if err != nil {
		return nil, err
	}
	fetchMs := time.Since(fetchStart).Milliseconds()

	hunks, err := bundle.Hunks()
	if err != nil {
		return nil, fmt.Errorf("extracting hunks: %w", err)
	}
	hunks = hunk.Filter(hunks, cfg.Include, cfg.Exclude)

	orch := review.NewOrchestrator(be, s.logger)
	orch.Limit = cfg.Concurrency
	orch.Model = cfg.ModelFor(cfg.Backend)
	orch.Redact = cfg.Privacy.RedactSecrets
	orch.RedactPaths = cfg.Privacy.RedactPaths
	if c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds); err != nil {
		s.logger.Warn("cache unavailable for this run", zap.Error(err))
	} else {
		orch.Cache = c
	}

	reviewStart := time.Now()
	findings := orch.ReviewAll(ctx, hunks, pack.PromptSection())
	findings = review.ApplyHeuristics(findings)
	findings = review.ApplySeverityOverrides(findings, pack)
	reviewMs := time.Since(reviewStart).Milliseconds()

	report := review.BuildReport(s.version, findings, review.DefaultPolicy())
	report.Backend = be.Name()
	report.Model = cfg.ModelFor(cfg.Backend)
	report.Inputs = review.InputInfo{Mode: "pr", PR: ref.String()}
	report.Timing = review.Timing{
		FetchMs:  fetchMs,
		ReviewMs: reviewMs,
		TotalMs:  fetchMs + reviewMs,
	}
	return report, nil
}

// metrics tracks run counters for the health endpoint.
type metrics struct {
	mu              sync.Mutex
	started         time.Time
	reviewsServed   int
	reviewErrors    int
	findingsEmitted int
	lastReview      time.Time
}

type metricsSnapshot struct {
	started         time.Time
	reviewsServed   int
	reviewErrors    int
	findingsEmitted int
	lastReview      time.Time
}

func (m *metrics) recordReview(findings int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewsServed++
	m.findingsEmitted += findings
	m.lastReview = time.Now()
}

func (m *metrics) recordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewErrors++
}

func (m *metrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		started:         m.started,
		reviewsServed:   m.reviewsServed,
		reviewErrors:    m.reviewErrors,
		findingsEmitted: m.findingsEmitted,
		lastReview:      m.lastReview,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

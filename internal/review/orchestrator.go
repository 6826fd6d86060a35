package review

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/refract/internal/cache"
	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/redact"
)

// DefaultConcurrency bounds parallel backend calls when the caller does not
// choose a limit.
const DefaultConcurrency = 4

// HunkReviewer is the one capability the orchestrator needs from a backend:
// review a single hunk and return the raw model text.
type HunkReviewer interface {
	ReviewHunk(ctx context.Context, h hunk.Hunk, guidelines string) (string, error)
	Name() string
}

// Orchestrator fans a hunk sequence out to one backend under a concurrency
// limit. Every dispatched hunk yields at least one finding: backend failures
// become per-hunk system diagnostics, never a failed run.
type Orchestrator struct {
	backend HunkReviewer
	logger  *zap.Logger

	// Limit bounds concurrent backend calls; values below 1 fall back to
	// DefaultConcurrency.
	Limit int

	// Cache, when set, short-circuits backend calls for hunks whose raw
	// response was stored by an earlier run. Model names the cached model
	// so switching models misses cleanly.
	Cache *cache.Cache
	Model string

	// Redact scrubs secret-looking content from patch text before it is
	// sent anywhere. RedactPaths lists glob patterns of files whose entire
	// patch is replaced rather than scanned.
	Redact      bool
	RedactPaths []string

	// OnProgress, when set, is called after each hunk settles, serially
	// and in completion order. Keep it fast; it runs on the worker path.
	OnProgress func(done, total int)
}

// NewOrchestrator wires an orchestrator around one backend. A nil logger
// disables logging.
func NewOrchestrator(b HunkReviewer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		backend: b,
		logger:  logger,
		Limit:   DefaultConcurrency,
		Redact:  true,
	}
}

// ReviewAll reviews every hunk and returns the flattened findings, grouped
// by hunk in submission order. An empty hunk sequence returns nothing and
// performs zero backend calls. Cancelling ctx stops new dispatches and
// tears down in-flight calls; findings for hunks that completed before the
// cancel are still returned.
func (o *Orchestrator) ReviewAll(ctx context.Context, hunks []hunk.Hunk, guidelines string) []Finding {
	if len(hunks) == 0 {
		return nil
	}

	limit := o.Limit
	if limit < 1 {
		limit = DefaultConcurrency
	}

	o.logger.Info("review started",
		zap.String("backend", o.backend.Name()),
		zap.Int("hunks", len(hunks)),
		zap.Int("concurrency", limit))

	results := make([][]Finding, len(hunks))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, h := range hunks {
		if gctx.Err() != nil {
			break
		}
		// Per-iteration copies: with the go directive below 1.22 the range
		// variables are shared across iterations.
		i, h := i, h
		g.Go(func() error {
			// Workers never return errors; one hunk must not cancel its
			// siblings.
			if gctx.Err() != nil {
				return nil
			}
			results[i] = o.reviewOne(gctx, h, guidelines)

			mu.Lock()
			done++
			d := done
			if o.OnProgress != nil {
				o.OnProgress(d, len(hunks))
			}
			mu.Unlock()
			o.logger.Debug("hunk settled",
				zap.String("hunk", h.ID()),
				zap.Int("done", d),
				zap.Int("total", len(hunks)))
			return nil
		})
	}
	_ = g.Wait()

	var findings []Finding
	for _, r := range results {
		findings = append(findings, r...)
	}
	o.logger.Info("review finished",
		zap.Int("hunks", len(hunks)),
		zap.Int("findings", len(findings)))
	return findings
}

// reviewOne runs the adapter call and normalization for a single hunk. The
// hunk argument is a copy, so redaction never touches the caller's slice.
func (o *Orchestrator) reviewOne(ctx context.Context, h hunk.Hunk, guidelines string) []Finding {
	if o.Redact {
		h.PatchText = redact.Content(h.PatchText, h.FilePath, o.RedactPaths)
	}

	key := cache.BuildKey(o.backend.Name(), o.Model, h.FilePath+h.HunkHeader+h.PatchText+guidelines)
	if o.Cache != nil {
		if raw, ok := o.Cache.Get(key); ok {
			o.logger.Debug("cache hit", zap.String("hunk", h.ID()))
			return Normalize(raw, h)
		}
	}

	raw, err := o.backend.ReviewHunk(ctx, h, guidelines)
	if err != nil {
		if ctx.Err() != nil {
			// The run is being abandoned; drop this hunk rather than
			// reporting the teardown as a finding.
			return nil
		}
		o.logger.Warn("hunk review failed",
			zap.String("hunk", h.ID()),
			zap.Error(err))
		return []Finding{Diagnostic(h, "backend review failed: "+err.Error())}
	}

	if o.Cache != nil {
		if err := o.Cache.Put(key, raw); err != nil {
			o.logger.Debug("cache write failed", zap.Error(err))
		}
	}
	return Normalize(raw, h)
}

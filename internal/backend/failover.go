package backend

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/hunk"
)

// Failover tries a priority-ordered list of backends and returns the first
// success. It is an explicit wrapper composed by the caller; the review
// pipeline itself never switches backends mid-run.
type Failover struct {
	chain  []Backend
	logger *zap.Logger
}

// NewFailover chains a primary backend with fallbacks in try order.
func NewFailover(logger *zap.Logger, primary Backend, fallbacks ...Backend) *Failover {
	if logger == nil {
		logger = zap.NewNop()
	}
	chain := make([]Backend, 0, 1+len(fallbacks))
	chain = append(chain, primary)
	chain = append(chain, fallbacks...)
	return &Failover{chain: chain, logger: logger}
}

// Name joins the chained backend names so reports show the full try order.
func (f *Failover) Name() string {
	names := make([]string, len(f.chain))
	for i, b := range f.chain {
		names[i] = b.Name()
	}
	return strings.Join(names, "+")
}

func (f *Failover) ReviewHunk(ctx context.Context, h hunk.Hunk, guidelines string) (string, error) {
	var lastErr error
	for i, b := range f.chain {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		reply, err := b.ReviewHunk(ctx, h, guidelines)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if i < len(f.chain)-1 {
			f.logger.Warn("backend failed, trying fallback",
				zap.String("backend", b.Name()),
				zap.String("next", f.chain[i+1].Name()),
				zap.String("hunk", h.ID()),
				zap.Error(err))
		}
	}
	return "", lastErr
}

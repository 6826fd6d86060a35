package backend

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
	"go.uber.org/zap"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// retryable reports whether a failed call is worth attempting again. Rate
// limits, server errors, and raw transport failures retry; anything already
// classified into the [Error] taxonomy, and context cancellation, do not.
func retryable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return err != nil
}

// withRetry runs fn with capped exponential backoff and jitter, bounded by
// ctx. The last error is returned unwrapped so classification can see it.
func withRetry(ctx context.Context, logger *zap.Logger, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryBaseDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(retryBaseDelay/4),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying backend request",
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}

package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

// Retry defaults per SPEC_FULL.md §4.9 (ported from the original retry
// constants: 3 attempts, 100ms initial delay, 2.0x backoff).
const (
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 100 * time.Millisecond
	DefaultRetryBackoff  = 2.0
)

// WithRetry invokes fn, retrying only on KindSerializationFailure with
// exponential backoff. Any other error (including context cancellation)
// propagates immediately. After maxRetries exhausted attempts it returns
// the last serialization error wrapped as KindInternal ("max retries
// exceeded"), per the original's MaxRetriesExceeded.
func WithRetry(ctx context.Context, logger *zap.Logger, maxRetries int, fn func(ctx context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := DefaultRetryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errs.Is(err, errs.KindSerializationFailure) {
			return err
		}
		lastErr = err

		if attempt < maxRetries {
			if logger != nil {
				logger.Info("serialization conflict, retrying",
					zap.Int("attempt", attempt+1),
					zap.Int("max_retries", maxRetries),
					zap.Duration("delay", delay),
				)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * DefaultRetryBackoff)
		}
	}

	if logger != nil {
		logger.Warn("max retries exceeded for serialization conflict", zap.Int("attempts", maxRetries+1))
	}
	return errs.Wrap(errs.KindInternal, "max retries exceeded", lastErr)
}

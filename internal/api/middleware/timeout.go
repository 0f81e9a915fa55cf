// timeout.go bounds how long a request may run end-to-end, independent of
// the per-statement timeouts store.Store already enforces on individual
// queries — this guards against a handler stuck outside the database
// entirely (a slow downstream call, a deadlocked goroutine).
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

// Default timeouts for different operation types
const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultExternalAPITimeout = 30 * time.Second
	DefaultDatabaseTimeout    = 10 * time.Second
	DefaultCacheTimeout       = 5 * time.Second
)

// RequestTimeout aborts a request that runs past timeout with the same
// {error, code, request_id} envelope every other failure uses (spec §6),
// rather than writing its own response shape.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
			return
		case <-ctx.Done():
			RespondError(c, errs.New(errs.KindQueryTimeout, "request processing timed out"))
			c.Abort()
		}
	}
}

// WithExternalTimeout returns a context with timeout for external API calls.
// If the parent context already has a shorter deadline, it's preserved.
func WithExternalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeoutIfNeeded(ctx, DefaultExternalAPITimeout)
}

// WithDatabaseTimeout returns a context with timeout for database operations.
func WithDatabaseTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeoutIfNeeded(ctx, DefaultDatabaseTimeout)
}

// WithCacheTimeout returns a context with timeout for cache operations.
func WithCacheTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeoutIfNeeded(ctx, DefaultCacheTimeout)
}

// withTimeoutIfNeeded adds a timeout only if the context doesn't already have a shorter deadline
func withTimeoutIfNeeded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < timeout {
			// Parent context has shorter deadline, use a no-op cancel
			return ctx, func() {}
		}
	}
	return context.WithTimeout(ctx, timeout)
}

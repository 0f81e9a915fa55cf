package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/metrics"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/ratelimit"
)

// RateLimit checks the request's IP fingerprint against category before
// letting it proceed, per spec §4.3. identifierFn lets call sites key by
// something other than IP (e.g. authenticated user ID) for CategoryUser.
func RateLimit(limiter *ratelimit.Limiter, category ratelimit.Category, identifierFn func(c *gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := identifierFn(c)
		if identifier == "" {
			identifier = ratelimit.Fingerprint(c.ClientIP(), c.GetHeader("User-Agent"), c.GetHeader("X-Client-Fingerprint"))
		}

		result, err := limiter.Check(c.Request.Context(), category, identifier)
		if err != nil {
			logger.Error("rate limiter check failed", zap.Error(err))
			c.Next()
			return
		}

		outcome := "allowed"
		if !result.Allowed {
			outcome = "denied"
		}
		metrics.RateLimitChecks.WithLabelValues(string(category), outcome).Inc()

		if !result.Allowed {
			c.Header("Retry-After", result.RetryAfter.String())
			RespondError(c, errs.New(errs.KindRateLimited, "rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ByUserID is an identifierFn for RateLimit that keys by the authenticated
// user, for routes behind Authenticate.
func ByUserID(c *gin.Context) string {
	id := CurrentUserID(c)
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// ByClientIP is an identifierFn for RateLimit that keys by the request's
// IP fingerprint, for routes with no authenticated identity yet.
func ByClientIP(c *gin.Context) string {
	return ratelimit.Fingerprint(c.ClientIP(), c.GetHeader("User-Agent"), c.GetHeader("X-Client-Fingerprint"))
}

// envelope.go centralizes the one place this module maps a tagged
// internal/errs.Error to an HTTP status and response body, per
// SPEC_FULL.md §7's error-handling table. Handlers never write their own
// status codes for domain failures; they return an error and let this
// middleware translate it.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

// statusByKind and codeByKind implement spec §6/§7's response contract
// together: status drives the HTTP status line, code is the stable enum
// the response body carries so clients never have to string-match Message.
var statusByKind = map[errs.Kind]int{
	errs.KindValidation:           http.StatusBadRequest,
	errs.KindUnauthenticated:      http.StatusUnauthorized,
	errs.KindSessionRevoked:       http.StatusUnauthorized,
	errs.KindTeamBoundary:         http.StatusForbidden,
	errs.KindRoleDenied:           http.StatusForbidden,
	errs.KindIdempotencyConflict:  http.StatusConflict,
	errs.KindIdempotencyLocked:    http.StatusConflict,
	errs.KindNotFound:             http.StatusNotFound,
	errs.KindInvalidTransition:    http.StatusConflict,
	errs.KindRateLimited:          http.StatusTooManyRequests,
	errs.KindCircuitOpen:          http.StatusServiceUnavailable,
	errs.KindAccountLocked:        423,
	errs.KindWebhookSignature:     http.StatusUnauthorized,
	errs.KindWebhookDuplicate:     http.StatusOK,
	errs.KindSerializationFailure: http.StatusInternalServerError,
	errs.KindQueryTimeout:         http.StatusServiceUnavailable,
	errs.KindConnection:           http.StatusServiceUnavailable,
	errs.KindInternal:             http.StatusInternalServerError,
}

var codeByKind = map[errs.Kind]string{
	errs.KindValidation:           "VALIDATION_ERROR",
	errs.KindUnauthenticated:      "AUTH_REQUIRED",
	errs.KindSessionRevoked:       "SESSION_INVALID",
	errs.KindTeamBoundary:         "TEAM_ACCESS_DENIED",
	errs.KindRoleDenied:           "ROLE_REQUIRED",
	errs.KindIdempotencyConflict:  "IDEMPOTENCY_CONFLICT",
	errs.KindIdempotencyLocked:    "CONFLICT",
	errs.KindNotFound:             "NOT_FOUND",
	errs.KindInvalidTransition:    "CONFLICT",
	errs.KindRateLimited:          "RATE_LIMITED",
	errs.KindCircuitOpen:          "INTERNAL_ERROR",
	errs.KindAccountLocked:        "ACCOUNT_LOCKED",
	errs.KindWebhookSignature:     "VALIDATION_ERROR",
	errs.KindWebhookDuplicate:     "CONFLICT",
	errs.KindSerializationFailure: "INTERNAL_ERROR",
	errs.KindQueryTimeout:         "INTERNAL_ERROR",
	errs.KindConnection:           "INTERNAL_ERROR",
	errs.KindInternal:             "INTERNAL_ERROR",
}

// genericMessageByKind never leaks the internal Message text for failure
// kinds whose message might embed validation specifics (I9: no information
// disclosure beyond the request ID). Kinds not listed here pass their
// Message through unchanged because it is already a fixed, non-sensitive
// string the service layer hard-codes.
var genericMessageByKind = map[errs.Kind]string{
	errs.KindInternal:             "an internal error occurred",
	errs.KindSerializationFailure: "an internal error occurred",
	errs.KindQueryTimeout:         "service temporarily unavailable",
	errs.KindConnection:           "service temporarily unavailable",
}

// SecurityHeaders sets the fixed response headers required by spec §6 on
// every response, success or failure.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		if c.GetHeader("X-Request-ID") == "" {
			c.Set("request_id", uuid.New().String())
		}
		c.Header("X-Request-ID", requestID(c))
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// RespondError writes the spec §6 error envelope: {error, code, request_id}.
// The response body never includes Err's text (internal detail) or any
// value beyond te.Message, and te.Message itself is replaced by a fixed
// generic string for kinds whose detail could leak internals (I9).
func RespondError(c *gin.Context, err error) {
	te, ok := err.(*errs.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "an internal error occurred",
			"code":       "INTERNAL_ERROR",
			"request_id": requestID(c),
		})
		return
	}

	status, ok := statusByKind[te.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	code, ok := codeByKind[te.Kind]
	if !ok {
		code = "INTERNAL_ERROR"
	}
	message := te.Message
	if generic, ok := genericMessageByKind[te.Kind]; ok {
		message = generic
	}
	c.JSON(status, gin.H{
		"error":      message,
		"code":       code,
		"request_id": requestID(c),
	})
}

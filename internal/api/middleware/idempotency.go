package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/idempotency"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/metrics"
)

const (
	ctxKeyIdempotencyKey = "idempotency_key"
	ctxKeyRequestHash    = "idempotency_request_hash"
	idempotencyKeyHeader = "Idempotency-Key"
)

// IdempotencyReplay implements step 1 of the protocol (spec §4.8) at the
// edge: it hashes the request body, checks it against any existing record,
// and either replays a cached response, rejects a concurrent duplicate, or
// lets the request through with the key and hash stashed for the handler.
// The handler is responsible for calling Acquire/Finalize inside its own
// business transaction so the idempotency record co-commits with the state
// change it guards.
func IdempotencyReplay(svc *idempotency.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			RespondError(c, errs.New(errs.KindValidation, "unreadable request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		requestHash := hex.EncodeToString(sum[:])

		userID := CurrentUserID(c)
		outcome, rec, err := svc.Check(c.Request.Context(), userID, key, requestHash)
		if err != nil {
			metrics.IdempotencyOutcomes.WithLabelValues("conflict").Inc()
			RespondError(c, err)
			c.Abort()
			return
		}

		switch outcome {
		case idempotency.OutcomeCached:
			metrics.IdempotencyOutcomes.WithLabelValues("cached").Inc()
			var payload interface{}
			if rec.Response != nil {
				_ = json.Unmarshal(*rec.Response, &payload)
			}
			c.JSON(http.StatusOK, payload)
			c.Abort()
			return
		case idempotency.OutcomeLocked:
			metrics.IdempotencyOutcomes.WithLabelValues("locked").Inc()
			RespondError(c, errs.New(errs.KindIdempotencyLocked, "request already in flight"))
			c.Abort()
			return
		case idempotency.OutcomeRetry:
			metrics.IdempotencyOutcomes.WithLabelValues("retry").Inc()
		default:
			metrics.IdempotencyOutcomes.WithLabelValues("proceed").Inc()
		}

		c.Set(ctxKeyIdempotencyKey, key)
		c.Set(ctxKeyRequestHash, requestHash)
		c.Next()
	}
}

// CurrentIdempotencyKey returns the key stashed by IdempotencyReplay, and
// whether one was supplied on this request.
func CurrentIdempotencyKey(c *gin.Context) (string, string, bool) {
	key, ok := c.Get(ctxKeyIdempotencyKey)
	if !ok {
		return "", "", false
	}
	hash, _ := c.Get(ctxKeyRequestHash)
	ks, _ := key.(string)
	hs, _ := hash.(string)
	if ks == "" {
		return "", "", false
	}
	return ks, hs, true
}

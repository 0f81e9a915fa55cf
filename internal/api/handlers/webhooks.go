package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/middleware"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/webhook"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/security"
)

// WebhookHandler receives inbound provider webhooks. Unlike every other
// handler in this package, it carries no Authenticate/RequireRole
// middleware in front of it — signature verification inside
// webhook.Service.Process is the gate every provider goes through.
// ipGuard/rateGuard are the optional, disabled-by-default supplemental
// defenses from pkg/security; either is nil when its deployment config
// leaves it off, in which case Receive skips straight past it.
type WebhookHandler struct {
	webhooks  *webhook.Service
	ipGuard   *security.WebhookIPWhitelist
	rateGuard *security.WebhookRateLimiter
}

func NewWebhookHandler(webhooks *webhook.Service, ipGuard *security.WebhookIPWhitelist, rateGuard *security.WebhookRateLimiter) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, ipGuard: ipGuard, rateGuard: rateGuard}
}

const signatureHeader = "X-Webhook-Signature"

// Receive implements spec §8 scenario 6: a duplicate delivery returns 200
// with duplicate=true rather than an error, since the provider interprets
// any non-2xx as "retry," and retrying a delivery we already processed
// would only grow the retry storm.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := c.Param("provider")

	if h.ipGuard != nil {
		if err := h.ipGuard.ValidateIP(provider, c.ClientIP()); err != nil {
			middleware.RespondError(c, errs.Wrap(errs.KindWebhookSignature, "webhook source IP rejected", err))
			return
		}
	}

	if h.rateGuard != nil {
		allowed, err := h.rateGuard.Allow(c.Request.Context(), provider)
		if err != nil {
			middleware.RespondError(c, errs.Wrap(errs.KindInternal, "webhook rate limiter", err))
			return
		}
		if !allowed {
			middleware.RespondError(c, errs.New(errs.KindRateLimited, "webhook rate limit exceeded"))
			return
		}
	}

	sig := c.GetHeader(signatureHeader)
	if sig == "" {
		middleware.RespondError(c, errs.New(errs.KindWebhookSignature, "missing signature header"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.RespondError(c, errs.Wrap(errs.KindValidation, "read webhook body", err))
		return
	}

	outcome, webhookID, err := h.webhooks.Process(c.Request.Context(), provider, body, sig)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	if outcome == webhook.OutcomeDuplicate {
		c.JSON(http.StatusOK, gin.H{"duplicate": true, "webhook_id": webhookID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"duplicate": false, "webhook_id": webhookID})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/middleware"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/authorization"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/idempotency"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/payments"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

// PaymentHandler implements the payment state machine's HTTP surface (spec
// §4.10), guarded by the idempotency engine (§4.8) on creation.
type PaymentHandler struct {
	payments    *payments.Service
	authz       *authorization.Service
	idempotency *idempotency.Service
	db          *store.Store
}

func NewPaymentHandler(paymentsSvc *payments.Service, authz *authorization.Service, idempotencySvc *idempotency.Service, db *store.Store) *PaymentHandler {
	return &PaymentHandler{payments: paymentsSvc, authz: authz, idempotency: idempotencySvc, db: db}
}

type createPaymentRequest struct {
	TeamID      uuid.UUID `json:"team_id" binding:"required"`
	AmountCents int64     `json:"amount_cents" binding:"required"`
	Currency    string    `json:"currency" binding:"required"`
}

// Create requires MEMBER-or-above on the team named in the body (payments
// are team-scoped but the route itself isn't team-prefixed, matching the
// request shape in spec §8 scenario 2). When an idempotency key is
// present, the acquire, the payment insert, and the finalize all run
// inside one SERIALIZABLE transaction (spec §4.8 step 3: "either both
// persist or neither does") — a failed Create rolls the acquired PENDING
// row back with it instead of leaving it stranded, and a retried request
// with the same key and body always yields the one payment.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}

	userID := middleware.CurrentUserID(c)
	if _, err := h.authz.Require(c.Request.Context(), userID, req.TeamID, entities.RoleMember); err != nil {
		middleware.RespondError(c, err)
		return
	}

	key, requestHash, hasKey := middleware.CurrentIdempotencyKey(c)

	var payment *entities.Payment
	txErr := store.WithRetry(c.Request.Context(), nil, store.DefaultMaxRetries, func(ctx context.Context) error {
		return h.db.Transact(ctx, store.Serializable, store.PaymentStatementTimeout, false, func(ctx context.Context, tx *store.Tx) error {
			if hasKey {
				if _, err := h.idempotency.Acquire(ctx, tx, userID, key, requestHash); err != nil {
					return err
				}
			}

			var err error
			payment, err = h.payments.Create(ctx, tx, req.TeamID, userID, req.AmountCents, req.Currency, key)
			if err != nil {
				return err
			}

			if !hasKey {
				return nil
			}

			body, err := json.Marshal(payment)
			if err != nil {
				return errs.Wrap(errs.KindInternal, "marshal payment response", err)
			}
			raw := json.RawMessage(body)
			return h.idempotency.Finalize(ctx, tx, userID, key, entities.IdempotencyCompleted, &raw)
		})
	})
	if txErr != nil {
		middleware.RespondError(c, txErr)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) paymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid payment id"))
		return uuid.Nil, false
	}
	return id, true
}

type completePaymentRequest struct {
	ExternalChargeID string `json:"external_charge_id" binding:"required"`
}

func (h *PaymentHandler) Complete(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}
	var req completePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}
	if err := h.payments.Complete(c.Request.Context(), id, req.ExternalChargeID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

type failPaymentRequest struct {
	ErrorCode    string `json:"error_code" binding:"required"`
	ErrorMessage string `json:"error_message"`
}

func (h *PaymentHandler) Fail(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}
	var req failPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}
	if err := h.payments.Fail(c.Request.Context(), id, req.ErrorCode, req.ErrorMessage); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "failed"})
}

func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}
	if err := h.payments.Cancel(c.Request.Context(), id); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}
	if err := h.payments.Refund(c.Request.Context(), id); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}

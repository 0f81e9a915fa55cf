// Package payments implements the payment state machine from
// SPEC_FULL.md §4.10: PENDING -> COMPLETED|FAILED|CANCELLED, COMPLETED ->
// REFUNDED. Every transition is a conditional UPDATE ... WHERE status =
// expected_from; a zero row count means the precondition failed, not an
// error, and is reported to the caller as such. Each transition writes a
// matching payment.* audit event in the same transaction.
package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/audit"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

// Repository persists payments and performs the conditional transitions.
// Transition implementations return (rowsAffected, error); zero rows with a
// nil error means the precondition (status = expected) did not hold.
type Repository interface {
	Insert(ctx context.Context, tx *store.Tx, p *entities.Payment) error
	FindByIdempotencyKey(ctx context.Context, teamID uuid.UUID, key string) (*entities.Payment, error)
	Transition(ctx context.Context, tx *store.Tx, id uuid.UUID, from, to entities.PaymentStatus, set map[string]interface{}) (bool, error)
}

type Service struct {
	repo   Repository
	audit  *audit.Service
	db     *store.Store
	logger *zap.Logger
}

func NewService(repo Repository, db *store.Store, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{repo: repo, db: db, audit: auditSvc, logger: logger}
}

// Create inserts a new PENDING payment inside the caller-supplied tx.
// Callers that also acquire an idempotency lock and finalize it (see
// internal/api/handlers/payments.go) must run Create in that same tx so
// the insert, the idempotency record, and the audit event commit or roll
// back together.
func (s *Service) Create(ctx context.Context, tx *store.Tx, teamID, userID uuid.UUID, amountCents int64, currency, idempotencyKey string) (*entities.Payment, error) {
	if amountCents <= 0 {
		return nil, errs.New(errs.KindValidation, "amount_cents must be positive")
	}

	payment := &entities.Payment{
		ID:             uuid.New(),
		TeamID:         teamID,
		UserID:         userID,
		AmountCents:    amountCents,
		Currency:       currency,
		Status:         entities.PaymentPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, tx, payment); err != nil {
		return nil, err
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventPaymentCreated, &userID, entities.ActorUser, "payment", &payment.ID, "payment created", map[string]interface{}{
			"amount_cents": amountCents, "currency": currency,
		}); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// Complete transitions PENDING -> COMPLETED, recording the external charge
// reference.
func (s *Service) Complete(ctx context.Context, paymentID uuid.UUID, externalChargeID string) error {
	return s.transition(ctx, paymentID, entities.PaymentPending, entities.PaymentCompleted, entities.EventPaymentCompleted,
		map[string]interface{}{"external_charge_id": externalChargeID, "completed_at": time.Now().UTC()},
		map[string]interface{}{"external_charge_id": externalChargeID})
}

// Fail transitions PENDING -> FAILED, recording the error code/message.
func (s *Service) Fail(ctx context.Context, paymentID uuid.UUID, errorCode, errorMessage string) error {
	return s.transition(ctx, paymentID, entities.PaymentPending, entities.PaymentFailed, entities.EventPaymentFailed,
		map[string]interface{}{"error_code": errorCode, "error_message": errorMessage, "failed_at": time.Now().UTC()},
		map[string]interface{}{"error_code": errorCode})
}

// Cancel transitions PENDING -> CANCELLED (caller- or system-initiated
// before any charge attempt).
func (s *Service) Cancel(ctx context.Context, paymentID uuid.UUID) error {
	return s.transition(ctx, paymentID, entities.PaymentPending, entities.PaymentCancelled, entities.EventPaymentCancelled,
		map[string]interface{}{"cancelled_at": time.Now().UTC()}, nil)
}

// Refund transitions COMPLETED -> REFUNDED. Only reachable from COMPLETED;
// a payment that never completed cannot be refunded.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID) error {
	return s.transition(ctx, paymentID, entities.PaymentCompleted, entities.PaymentRefunded, entities.EventPaymentRefunded,
		map[string]interface{}{"refunded_at": time.Now().UTC()}, nil)
}

func (s *Service) transition(ctx context.Context, paymentID uuid.UUID, from, to entities.PaymentStatus, event entities.EventType, set map[string]interface{}, auditDetails map[string]interface{}) error {
	if !entities.CanTransition(from, to) {
		return errs.New(errs.KindInvalidTransition, "transition not permitted by the payment state machine")
	}

	return store.WithRetry(ctx, s.logger, store.DefaultMaxRetries, func(ctx context.Context) error {
		return s.db.Transact(ctx, store.Serializable, store.PaymentStatementTimeout, false, func(ctx context.Context, tx *store.Tx) error {
			ok, err := s.repo.Transition(ctx, tx, paymentID, from, to, set)
			if err != nil {
				return err
			}
			if !ok {
				return errs.New(errs.KindInvalidTransition, "payment is not in the expected state")
			}
			if s.audit != nil {
				details := map[string]interface{}{"from": string(from), "to": string(to)}
				for k, v := range auditDetails {
					details[k] = v
				}
				return s.audit.Log(ctx, tx, event, nil, entities.ActorSystem, "payment", &paymentID, "payment transitioned", details)
			}
			return nil
		})
	})
}

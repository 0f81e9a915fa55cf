package entities

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the state of a Payment in the machine described in
// SPEC_FULL.md §4.10: PENDING -> COMPLETED|FAILED|CANCELLED, and
// COMPLETED -> REFUNDED.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment stores its amount in integer minor units (cents for USD-like
// currencies) exclusively; floats and arbitrary-precision decimal types are
// never used for monetary storage in this module. Amount and Currency are
// immutable after creation (I6).
type Payment struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	TeamID           uuid.UUID     `json:"team_id" db:"team_id"`
	UserID           uuid.UUID     `json:"user_id" db:"user_id"`
	AmountCents      int64         `json:"amount_cents" db:"amount_cents"`
	Currency         string        `json:"currency" db:"currency"`
	Status           PaymentStatus `json:"status" db:"status"`
	ExternalIntentID *string       `json:"external_intent_id,omitempty" db:"external_intent_id"`
	ExternalChargeID *string       `json:"external_charge_id,omitempty" db:"external_charge_id"`
	IdempotencyKey   string        `json:"idempotency_key" db:"idempotency_key"`
	ErrorCode        *string       `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage     *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt         *time.Time    `json:"failed_at,omitempty" db:"failed_at"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty" db:"refunded_at"`
}

// allowedTransitions maps each origin status to the statuses reachable from
// it in a single conditional UPDATE.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to PaymentStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

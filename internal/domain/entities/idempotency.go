package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdempotencyStatus is the lifecycle state of an IdempotencyRecord.
type IdempotencyStatus string

const (
	IdempotencyPending   IdempotencyStatus = "PENDING"
	IdempotencyCompleted IdempotencyStatus = "COMPLETED"
	IdempotencyFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is unique on (UserID, Key). COMPLETED is terminal;
// FAILED may be re-entered as PENDING by a retry with a matching RequestHash.
type IdempotencyRecord struct {
	Key          string            `json:"key" db:"key"`
	UserID       uuid.UUID         `json:"user_id" db:"user_id"`
	RequestHash  string            `json:"-" db:"request_hash"`
	Status       IdempotencyStatus `json:"status" db:"status"`
	Response     *json.RawMessage  `json:"response,omitempty" db:"response"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at" db:"expires_at"`
	LockedAt     *time.Time        `json:"locked_at,omitempty" db:"locked_at"`
}

// DefaultIdempotencyTTL is the 48-hour window after which a record is
// eligible for cleanup regardless of its terminal status.
const DefaultIdempotencyTTL = 48 * time.Hour

// DefaultCleanupBatchSize bounds how many expired rows the cleanup job
// deletes per run.
const DefaultCleanupBatchSize = 1000

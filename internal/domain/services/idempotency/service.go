// Package idempotency implements the Check/Acquire/Finalize protocol from
// SPEC_FULL.md §4.8: a client-supplied key guards against double-execution
// of the same logical request under retries and concurrent duplicates,
// using a three-layer Postgres defense (UNIQUE constraint, INSERT ... ON
// CONFLICT, and a pg_advisory_xact_lock serializing same-key requests).
package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

// Repository implements the Postgres side of the protocol. AcquireLocked
// must take the pg_advisory_xact_lock keyed on (user, key) before the
// INSERT ... ON CONFLICT so concurrent first-requests for the same key
// serialize rather than race.
type Repository interface {
	Find(ctx context.Context, userID uuid.UUID, key string) (*entities.IdempotencyRecord, error)
	AcquireLocked(ctx context.Context, tx *store.Tx, userID uuid.UUID, key, requestHash string, ttl time.Duration) (*entities.IdempotencyRecord, bool, error)
	Finalize(ctx context.Context, tx *store.Tx, userID uuid.UUID, key string, status entities.IdempotencyStatus, response *json.RawMessage) error
	DeleteExpired(ctx context.Context, before time.Time, batchSize int) (int64, error)
}

type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, ttl: entities.DefaultIdempotencyTTL}
}

// Outcome reports what the caller should do with a Check result.
type Outcome string

const (
	OutcomeProceed Outcome = "PROCEED" // no existing record; acquire and execute
	OutcomeCached  Outcome = "CACHED"  // COMPLETED with matching hash; replay the stored response
	OutcomeLocked  Outcome = "LOCKED"  // PENDING; another request is in flight
	OutcomeRetry   Outcome = "RETRY"   // FAILED with matching hash; acquire and re-execute
)

// Check implements step 1 of the protocol.
func (s *Service) Check(ctx context.Context, userID uuid.UUID, key, requestHash string) (Outcome, *entities.IdempotencyRecord, error) {
	rec, err := s.repo.Find(ctx, userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutcomeProceed, nil, nil
		}
		return "", nil, errs.Wrap(errs.KindInternal, "lookup idempotency record", err)
	}

	if rec.RequestHash != requestHash {
		return "", nil, errs.New(errs.KindIdempotencyConflict, "idempotency key reused with a different request payload")
	}

	switch rec.Status {
	case entities.IdempotencyPending:
		return OutcomeLocked, rec, nil
	case entities.IdempotencyCompleted:
		return OutcomeCached, rec, nil
	case entities.IdempotencyFailed:
		return OutcomeRetry, rec, nil
	default:
		return "", nil, errs.New(errs.KindInternal, "unknown idempotency status")
	}
}

// Acquire implements step 2: an atomic insert-or-transition to PENDING,
// serialized per-key by an advisory lock taken inside tx. Returns
// KindIdempotencyConflict if a concurrent request won the race with a
// different request hash.
func (s *Service) Acquire(ctx context.Context, tx *store.Tx, userID uuid.UUID, key, requestHash string) (*entities.IdempotencyRecord, error) {
	rec, acquired, err := s.repo.AcquireLocked(ctx, tx, userID, key, requestHash, s.ttl)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "acquire idempotency lock", err)
	}
	if !acquired {
		if rec != nil && rec.Status == entities.IdempotencyPending {
			return nil, errs.New(errs.KindIdempotencyLocked, "request already in flight")
		}
		return nil, errs.New(errs.KindIdempotencyConflict, "idempotency key reused with a different request payload")
	}
	return rec, nil
}

// Finalize implements step 3. Callers must invoke this inside the same
// transaction as the handler's state change so that both commit together
// or neither does.
func (s *Service) Finalize(ctx context.Context, tx *store.Tx, userID uuid.UUID, key string, status entities.IdempotencyStatus, response *json.RawMessage) error {
	if status != entities.IdempotencyCompleted && status != entities.IdempotencyFailed {
		return errs.New(errs.KindInternal, "finalize requires a terminal status")
	}
	if err := s.repo.Finalize(ctx, tx, userID, key, status, response); err != nil {
		return errs.Wrap(errs.KindInternal, "finalize idempotency record", err)
	}
	return nil
}

// Cleanup deletes expired records in bounded batches, invoked by the
// cleanup worker.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, time.Now().UTC(), entities.DefaultCleanupBatchSize)
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, "cleanup idempotency records", err)
	}
	return n, nil
}

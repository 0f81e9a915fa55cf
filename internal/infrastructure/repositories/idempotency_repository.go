package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

type IdempotencyRepository struct {
	db *sqlx.DB
}

func NewIdempotencyRepository(db *sqlx.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// advisoryLockKey hashes (userID, key) into the int64 pg_advisory_xact_lock
// takes, so same-key concurrent requests from the same user serialize
// without a dedicated lock table.
func advisoryLockKey(userID uuid.UUID, key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID.String()))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (r *IdempotencyRepository) Find(ctx context.Context, userID uuid.UUID, key string) (*entities.IdempotencyRecord, error) {
	return scanIdempotencyRow(r.db.QueryRowContext(ctx, `
		SELECT key, user_id, request_hash, status, response, created_at, expires_at, locked_at
		FROM idempotency_keys WHERE user_id = $1 AND key = $2`, userID, key))
}

// AcquireLocked implements the 3-layer defense: the advisory lock taken
// inside tx serializes same-(user,key) callers, the UNIQUE constraint on
// (user_id, key) backs it up at the database level, and the single INSERT
// ... ON CONFLICT ... DO UPDATE ... WHERE statement makes the
// absent-or-failed-with-matching-hash check and the transition to PENDING
// atomic. A zero-row RETURNING means the conflicting row did not meet that
// condition (already PENDING, COMPLETED, or a hash mismatch), so the caller
// is told not-acquired and handed the existing row to classify why.
func (r *IdempotencyRepository) AcquireLocked(ctx context.Context, tx *store.Tx, userID uuid.UUID, key, requestHash string, ttl time.Duration) (*entities.IdempotencyRecord, bool, error) {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey(userID, key)); err != nil {
		return nil, false, fmt.Errorf("idempotency advisory lock: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	rec, err := scanIdempotencyRow(tx.QueryRowContext(ctx, `
		INSERT INTO idempotency_keys (key, user_id, request_hash, status, created_at, expires_at, locked_at)
		VALUES ($1, $2, $3, 'PENDING', $4, $5, $4)
		ON CONFLICT (user_id, key) DO UPDATE SET
			status = 'PENDING', request_hash = $3, locked_at = $4, expires_at = $5
		WHERE idempotency_keys.status = 'FAILED' AND idempotency_keys.request_hash = $3
		RETURNING key, user_id, request_hash, status, response, created_at, expires_at, locked_at
	`, key, userID, requestHash, now, expiresAt))
	if err == sql.ErrNoRows {
		existing, findErr := scanIdempotencyRow(tx.QueryRowContext(ctx, `
			SELECT key, user_id, request_hash, status, response, created_at, expires_at, locked_at
			FROM idempotency_keys WHERE user_id = $1 AND key = $2`, userID, key))
		if findErr != nil {
			return nil, false, fmt.Errorf("acquire idempotency lock: lookup existing: %w", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	return rec, true, nil
}

func (r *IdempotencyRepository) Finalize(ctx context.Context, tx *store.Tx, userID uuid.UUID, key string, status entities.IdempotencyStatus, response *json.RawMessage) error {
	var responseBytes []byte
	if response != nil {
		responseBytes = []byte(*response)
	}
	_, err := execerFor(r.db, tx).ExecContext(ctx, `
		UPDATE idempotency_keys SET status = $3, response = $4, locked_at = NULL
		WHERE user_id = $1 AND key = $2`,
		userID, key, status, responseBytes)
	if err != nil {
		return fmt.Errorf("finalize idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys WHERE key IN (
			SELECT key FROM idempotency_keys WHERE expires_at < $1 LIMIT $2
		)`, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	return res.RowsAffected()
}

func scanIdempotencyRow(row *sql.Row) (*entities.IdempotencyRecord, error) {
	var rec entities.IdempotencyRecord
	var response sql.NullString
	var lockedAt sql.NullTime

	err := row.Scan(&rec.Key, &rec.UserID, &rec.RequestHash, &rec.Status,
		&response, &rec.CreatedAt, &rec.ExpiresAt, &lockedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	if response.Valid {
		raw := json.RawMessage(response.String)
		rec.Response = &raw
	}
	if lockedAt.Valid {
		rec.LockedAt = &lockedAt.Time
	}
	return &rec, nil
}

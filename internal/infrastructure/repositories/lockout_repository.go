package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
)

type LockoutRepository struct {
	db *sqlx.DB
}

func NewLockoutRepository(db *sqlx.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

func (r *LockoutRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*entities.AccountLockout, error) {
	query := `
		SELECT user_id, ip_address, failed_attempts, last_attempt_at, locked_until
		FROM account_lockouts WHERE user_id = $1`

	var l entities.AccountLockout
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&l.UserID, &l.IPAddress, &l.FailedAttempts, &l.LastAttemptAt, &l.LockedUntil)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("find account lockout: %w", err)
	}
	return &l, nil
}

func (r *LockoutRepository) RecordFailure(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.AccountLockout, error) {
	query := `
		INSERT INTO account_lockouts (user_id, failed_attempts, last_attempt_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			failed_attempts = account_lockouts.failed_attempts + 1, last_attempt_at = $2
		RETURNING user_id, ip_address, failed_attempts, last_attempt_at, locked_until`

	var l entities.AccountLockout
	err := r.db.QueryRowContext(ctx, query, userID, now).Scan(
		&l.UserID, &l.IPAddress, &l.FailedAttempts, &l.LastAttemptAt, &l.LockedUntil)
	if err != nil {
		return nil, fmt.Errorf("record auth failure: %w", err)
	}
	return &l, nil
}

func (r *LockoutRepository) Reset(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE account_lockouts SET failed_attempts = 0, locked_until = NULL WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("reset account lockout: %w", err)
	}
	return nil
}

func (r *LockoutRepository) Lock(ctx context.Context, userID uuid.UUID, until time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE account_lockouts SET locked_until = $2 WHERE user_id = $1`, userID, until)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

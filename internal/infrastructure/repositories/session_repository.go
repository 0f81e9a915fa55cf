// Package repositories holds the Postgres implementations of the
// Repository interfaces each domain service declares, following the plain
// sqlx/ExecContext/QueryRowContext style this module's reference session
// repository uses rather than an ORM or query builder.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

// execer is satisfied by both *sqlx.DB and *sqlx.Tx, letting every repo
// method run against either the pool or an open transaction without a
// separate code path.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func execerFor(db *sqlx.DB, tx *store.Tx) execer {
	if tx != nil {
		return tx.Tx
	}
	return db
}

type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Insert(ctx context.Context, tx *store.Tx, s *entities.Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, token_hash, team_id, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := execerFor(r.db, tx).ExecContext(ctx, query,
		s.ID, s.UserID, s.TokenHash, s.TeamID, s.IPAddress, s.UserAgent, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*entities.Session, error) {
	query := `
		SELECT id, user_id, token_hash, team_id, ip_address, user_agent,
		       created_at, last_used_at, revoked_at, revocation_reason
		FROM sessions
		WHERE token_hash = $1`

	var s entities.Session
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.TeamID, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastUsedAt, &s.RevokedAt, &s.RevocationReason)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("find session by token hash: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch session last_used_at: %w", err)
	}
	return nil
}

func (r *SessionRepository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND revoked_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

func (r *SessionRepository) RevokeOldest(ctx context.Context, userID uuid.UUID, reason entities.RevocationReason) error {
	query := `
		UPDATE sessions SET revoked_at = NOW(), revocation_reason = $2
		WHERE id = (
			SELECT id FROM sessions
			WHERE user_id = $1 AND revoked_at IS NULL
			ORDER BY created_at ASC
			LIMIT 1
		)`
	_, err := r.db.ExecContext(ctx, query, userID, reason)
	if err != nil {
		return fmt.Errorf("revoke oldest session: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeByID(ctx context.Context, tx *store.Tx, id uuid.UUID, reason entities.RevocationReason) (bool, error) {
	res, err := execerFor(r.db, tx).ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW(), revocation_reason = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SessionRepository) RevokeAllForUser(ctx context.Context, tx *store.Tx, userID uuid.UUID, reason entities.RevocationReason, except *uuid.UUID) (int64, error) {
	query := `
		UPDATE sessions SET revoked_at = NOW(), revocation_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL AND ($3::uuid IS NULL OR id != $3)`
	res, err := execerFor(r.db, tx).ExecContext(ctx, query, userID, reason, except)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions for user: %w", err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) RevokeAllForTeam(ctx context.Context, tx *store.Tx, teamID uuid.UUID, reason entities.RevocationReason) (int64, error) {
	res, err := execerFor(r.db, tx).ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW(), revocation_reason = $2 WHERE team_id = $1 AND revoked_at IS NULL`,
		teamID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions for team: %w", err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE revoked_at IS NOT NULL AND revoked_at < $1`
	res, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

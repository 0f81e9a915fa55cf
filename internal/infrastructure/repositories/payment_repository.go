package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Insert(ctx context.Context, tx *store.Tx, p *entities.Payment) error {
	query := `
		INSERT INTO payments (
			id, team_id, user_id, amount_cents, currency, status, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := execerFor(r.db, tx).ExecContext(ctx, query,
		p.ID, p.TeamID, p.UserID, p.AmountCents, p.Currency, p.Status, p.IdempotencyKey, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, teamID uuid.UUID, key string) (*entities.Payment, error) {
	query := `
		SELECT id, team_id, user_id, amount_cents, currency, status,
		       external_intent_id, external_charge_id, idempotency_key,
		       error_code, error_message, created_at, completed_at,
		       failed_at, cancelled_at, refunded_at
		FROM payments WHERE team_id = $1 AND idempotency_key = $2`

	var p entities.Payment
	err := r.db.QueryRowContext(ctx, query, teamID, key).Scan(
		&p.ID, &p.TeamID, &p.UserID, &p.AmountCents, &p.Currency, &p.Status,
		&p.ExternalIntentID, &p.ExternalChargeID, &p.IdempotencyKey,
		&p.ErrorCode, &p.ErrorMessage, &p.CreatedAt, &p.CompletedAt,
		&p.FailedAt, &p.CancelledAt, &p.RefundedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by idempotency key: %w", err)
	}
	return &p, nil
}

// Transition runs the conditional UPDATE ... WHERE status = from that is the
// payment state machine's sole write path (spec §4.10): set carries the
// terminal-timestamp/error columns specific to this transition. A zero row
// count (false, nil) means the precondition failed — the caller must not
// treat that as an error.
func (r *PaymentRepository) Transition(ctx context.Context, tx *store.Tx, id uuid.UUID, from, to entities.PaymentStatus, set map[string]interface{}) (bool, error) {
	setClauses := "status = $3"
	args := []interface{}{id, from, to}
	i := 4
	for col, val := range set {
		setClauses += fmt.Sprintf(", %s = $%d", col, i)
		args = append(args, val)
		i++
	}

	query := fmt.Sprintf(`UPDATE payments SET %s WHERE id = $1 AND status = $2`, setClauses)
	res, err := execerFor(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition payment rows affected: %w", err)
	}
	return n > 0, nil
}

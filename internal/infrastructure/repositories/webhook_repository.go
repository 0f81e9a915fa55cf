package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
)

type WebhookRepository struct {
	db *sqlx.DB
}

func NewWebhookRepository(db *sqlx.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// InsertIfAbsent is the sole dedup mechanism (I7): a zero-row insert, not a
// prior existence check, is the duplicate signal, so a duplicate can never
// race ahead of the check that rejects it.
func (r *WebhookRepository) InsertIfAbsent(ctx context.Context, w *entities.ProcessedWebhook) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_webhooks (
			webhook_id, provider, event_type, payload, status, signature_valid, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (webhook_id, provider) DO NOTHING`,
		w.WebhookID, w.Provider, w.EventType, w.Payload, w.Status, w.SignatureValid, w.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("insert processed webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert processed webhook rows affected: %w", err)
	}
	return n > 0, nil
}

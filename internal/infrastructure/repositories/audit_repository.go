package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes an append-only audit row. tx may be nil for events that
// don't accompany a state change (a rejected login, a denied authorization
// check); otherwise it co-commits with the caller's transaction (I5).
func (r *AuditRepository) Insert(ctx context.Context, tx *store.Tx, entry *entities.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, event_type, actor_id, actor_type, resource_type, resource_id,
			action, details, ip_address, user_agent, request_id, created_at,
			prev_signature, hmac_signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = execerFor(r.db, tx).ExecContext(ctx, query,
		entry.ID, entry.EventType, entry.ActorID, entry.ActorType, entry.ResourceType, entry.ResourceID,
		entry.Action, details, entry.IPAddress, entry.UserAgent, entry.RequestID, entry.CreatedAt,
		entry.PrevSignature, entry.HMACSignature)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListRange(ctx context.Context, start, end time.Time, limit int) ([]*entities.AuditEntry, error) {
	query := `
		SELECT id, event_type, actor_id, actor_type, resource_type, resource_id,
		       action, details, ip_address, user_agent, request_id, created_at,
		       prev_signature, hmac_signature
		FROM audit_logs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entities.AuditEntry
	for rows.Next() {
		var e entities.AuditEntry
		var actorID sql.NullString
		var resourceID sql.NullString
		var details []byte

		if err := rows.Scan(&e.ID, &e.EventType, &actorID, &e.ActorType, &e.ResourceType, &resourceID,
			&e.Action, &details, &e.IPAddress, &e.UserAgent, &e.RequestID, &e.CreatedAt,
			&e.PrevSignature, &e.HMACSignature); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		if actorID.Valid {
			id, err := uuid.Parse(actorID.String)
			if err == nil {
				e.ActorID = &id
			}
		}
		if resourceID.Valid {
			id, err := uuid.Parse(resourceID.String)
			if err == nil {
				e.ResourceID = &id
			}
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}

		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

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

type MembershipRepository struct {
	db *sqlx.DB
}

func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) FindActive(ctx context.Context, userID, teamID uuid.UUID) (*entities.TeamMembership, error) {
	query := `
		SELECT team_id, user_id, role, is_active, created_at, invited_by
		FROM team_memberships
		WHERE user_id = $1 AND team_id = $2 AND is_active = true`

	var m entities.TeamMembership
	err := r.db.QueryRowContext(ctx, query, userID, teamID).Scan(
		&m.TeamID, &m.UserID, &m.Role, &m.IsActive, &m.CreatedAt, &m.InvitedBy)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("find active membership: %w", err)
	}
	return &m, nil
}

func (r *MembershipRepository) Insert(ctx context.Context, tx *store.Tx, m *entities.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (team_id, user_id, role, is_active, created_at, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_id, user_id) DO UPDATE SET
			role = EXCLUDED.role, is_active = true, invited_by = EXCLUDED.invited_by`

	_, err := execerFor(r.db, tx).ExecContext(ctx, query,
		m.TeamID, m.UserID, m.Role, m.IsActive, m.CreatedAt, m.InvitedBy)
	if err != nil {
		return fmt.Errorf("insert team membership: %w", err)
	}
	return nil
}

func (r *MembershipRepository) UpdateRole(ctx context.Context, tx *store.Tx, teamID, userID uuid.UUID, role entities.Role) error {
	_, err := execerFor(r.db, tx).ExecContext(ctx,
		`UPDATE team_memberships SET role = $3 WHERE team_id = $1 AND user_id = $2 AND is_active = true`,
		teamID, userID, role)
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	return nil
}

func (r *MembershipRepository) Deactivate(ctx context.Context, tx *store.Tx, teamID, userID uuid.UUID) error {
	_, err := execerFor(r.db, tx).ExecContext(ctx,
		`UPDATE team_memberships SET is_active = false WHERE team_id = $1 AND user_id = $2`,
		teamID, userID)
	if err != nil {
		return fmt.Errorf("deactivate membership: %w", err)
	}
	return nil
}

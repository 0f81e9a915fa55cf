// Package authorization implements team-scoped RBAC: a single uncached
// membership lookup per request (I4 — a cached permission could outlive a
// role change), and role-changing operations that revoke the affected
// user's sessions in the same transaction as the role change (I4, I5).
package authorization

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/audit"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/session"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

// Repository reads and writes team memberships. Implemented by
// internal/infrastructure/repositories against Store.
type Repository interface {
	FindActive(ctx context.Context, userID, teamID uuid.UUID) (*entities.TeamMembership, error)
	Insert(ctx context.Context, tx *store.Tx, m *entities.TeamMembership) error
	UpdateRole(ctx context.Context, tx *store.Tx, teamID, userID uuid.UUID, role entities.Role) error
	Deactivate(ctx context.Context, tx *store.Tx, teamID, userID uuid.UUID) error
}

type Service struct {
	repo     Repository
	sessions *session.Service
	audit    *audit.Service
	logger   *zap.Logger
}

func NewService(repo Repository, sessions *session.Service, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{repo: repo, sessions: sessions, audit: auditSvc, logger: logger}
}

// Context performs the uncached lookup described in spec §4.7. A nil,nil
// return means no active membership exists; callers that need to reject
// that case should use Require instead.
func (s *Service) Context(ctx context.Context, userID, teamID uuid.UUID) (*entities.TeamMembership, error) {
	m, err := s.repo.FindActive(ctx, userID, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInternal, "lookup membership", err)
	}
	return m, nil
}

// Require enforces that userID holds at least minRole on teamID, raising
// TeamBoundary for no membership and RoleDenied for insufficient role. Both
// denials emit an audit event (they are security-relevant by definition).
func (s *Service) Require(ctx context.Context, userID, teamID uuid.UUID, minRole entities.Role) (*entities.TeamMembership, error) {
	m, err := s.Context(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		s.denyAudit(ctx, entities.EventTeamBoundary, userID, teamID, minRole, "")
		return nil, errs.New(errs.KindTeamBoundary, "no active membership in team")
	}
	if !m.Role.AtLeast(minRole) {
		s.denyAudit(ctx, entities.EventRoleDenied, userID, teamID, minRole, m.Role)
		return nil, errs.New(errs.KindRoleDenied, "role does not meet required level")
	}
	return m, nil
}

func (s *Service) denyAudit(ctx context.Context, event entities.EventType, userID, teamID uuid.UUID, required entities.Role, actual entities.Role) {
	if s.audit == nil {
		return
	}
	details := map[string]interface{}{"team_id": teamID.String(), "required_role": string(required)}
	if actual != "" {
		details["actual_role"] = string(actual)
	}
	_ = s.audit.Log(ctx, nil, event, &userID, entities.ActorUser, "team", &teamID, "authorization denied", details)
}

// AddMember requires the caller to hold ADMIN, enforces owner-only-owner for
// RoleOwner grants, and inserts the new membership inside tx.
func (s *Service) AddMember(ctx context.Context, tx *store.Tx, callerID, teamID, targetUserID uuid.UUID, role entities.Role) error {
	caller, err := s.Require(ctx, callerID, teamID, entities.RoleAdmin)
	if err != nil {
		return err
	}
	if role == entities.RoleOwner && caller.Role != entities.RoleOwner {
		return errs.New(errs.KindRoleDenied, "only an owner may grant the owner role")
	}

	m := &entities.TeamMembership{
		TeamID:    teamID,
		UserID:    targetUserID,
		Role:      role,
		IsActive:  true,
		InvitedBy: &callerID,
	}
	if err := s.repo.Insert(ctx, tx, m); err != nil {
		return errs.Wrap(errs.KindInternal, "insert membership", err)
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventMemberAdded, &callerID, entities.ActorUser, "team", &teamID, "member added", map[string]interface{}{
			"target_user_id": targetUserID.String(), "role": string(role),
		}); err != nil {
			return err
		}
	}
	return nil
}

// ChangeRole requires ADMIN, enforces owner-only-owner on both ends of the
// transition (an OWNER may only be demoted by another OWNER, and only an
// OWNER may promote to OWNER), updates the row, and revokes every session
// the affected user holds with reason ROLE_CHANGE — committed in the same
// transaction as the role update (I4, I5).
func (s *Service) ChangeRole(ctx context.Context, tx *store.Tx, callerID, teamID, targetUserID uuid.UUID, newRole entities.Role) error {
	caller, err := s.Require(ctx, callerID, teamID, entities.RoleAdmin)
	if err != nil {
		return err
	}

	target, err := s.Context(ctx, targetUserID, teamID)
	if err != nil {
		return err
	}
	if target == nil {
		return errs.New(errs.KindNotFound, "target has no active membership")
	}
	if (target.Role == entities.RoleOwner || newRole == entities.RoleOwner) && caller.Role != entities.RoleOwner {
		return errs.New(errs.KindRoleDenied, "only an owner may change an owner's role")
	}

	if err := s.repo.UpdateRole(ctx, tx, teamID, targetUserID, newRole); err != nil {
		return errs.Wrap(errs.KindInternal, "update role", err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventRoleChanged, &callerID, entities.ActorUser, "team", &teamID, "role changed", map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"from_role":      string(target.Role),
			"to_role":        string(newRole),
		}); err != nil {
			return err
		}
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeAllForUser(ctx, tx, targetUserID, entities.ReasonRoleChange, nil); err != nil {
			return errs.Wrap(errs.KindInternal, "revoke sessions after role change", err)
		}
	}
	return nil
}

// RemoveMember requires ADMIN, enforces owner-only-owner for removing an
// OWNER, soft-deactivates the membership, and revokes all of the target's
// sessions in the same transaction.
func (s *Service) RemoveMember(ctx context.Context, tx *store.Tx, callerID, teamID, targetUserID uuid.UUID) error {
	caller, err := s.Require(ctx, callerID, teamID, entities.RoleAdmin)
	if err != nil {
		return err
	}
	target, err := s.Context(ctx, targetUserID, teamID)
	if err != nil {
		return err
	}
	if target == nil {
		return errs.New(errs.KindNotFound, "target has no active membership")
	}
	if target.Role == entities.RoleOwner && caller.Role != entities.RoleOwner {
		return errs.New(errs.KindRoleDenied, "only an owner may remove an owner")
	}

	if err := s.repo.Deactivate(ctx, tx, teamID, targetUserID); err != nil {
		return errs.Wrap(errs.KindInternal, "deactivate membership", err)
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventMemberRemoved, &callerID, entities.ActorUser, "team", &teamID, "member removed", map[string]interface{}{
			"target_user_id": targetUserID.String(),
		}); err != nil {
			return err
		}
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeAllForUser(ctx, tx, targetUserID, entities.ReasonRoleChange, nil); err != nil {
			return errs.Wrap(errs.KindInternal, "revoke sessions after removal", err)
		}
	}
	return nil
}

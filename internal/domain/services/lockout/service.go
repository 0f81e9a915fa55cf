// Package lockout implements account lockout bookkeeping: AccountLockout is
// named in SPEC_FULL.md §3's data model but no operation in spec.md
// references it. This module adds the missing operation, fed by the
// identity provider's (out-of-scope) failed-authentication notifications,
// and reports 423-eligible state per spec §6's status mapping.
package lockout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/audit"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

const (
	DefaultFailureThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// Repository persists lockout state. Implemented by
// internal/infrastructure/repositories against Store.
type Repository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*entities.AccountLockout, error)
	RecordFailure(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.AccountLockout, error)
	Reset(ctx context.Context, userID uuid.UUID) error
	Lock(ctx context.Context, userID uuid.UUID, until time.Time) error
}

type Service struct {
	repo      Repository
	audit     *audit.Service
	threshold int
	duration  time.Duration
	logger    *zap.Logger
}

func NewService(repo Repository, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		audit:     auditSvc,
		threshold: DefaultFailureThreshold,
		duration:  DefaultLockoutDuration,
		logger:    logger,
	}
}

// CheckLocked reports whether userID is currently locked out.
func (s *Service) CheckLocked(ctx context.Context, userID uuid.UUID) (bool, error) {
	l, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, "lookup account lockout", err)
	}
	if l == nil {
		return false, nil
	}
	return l.IsLocked(time.Now().UTC()), nil
}

// RecordFailure is invoked by the identity provider collaborator after a
// failed authentication attempt. Crossing the threshold locks the account
// for DefaultLockoutDuration and emits an EventAccountLocked audit event.
func (s *Service) RecordFailure(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	l, err := s.repo.RecordFailure(ctx, userID, now)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "record authentication failure", err)
	}

	if l.FailedAttempts >= s.threshold {
		until := now.Add(s.duration)
		if err := s.repo.Lock(ctx, userID, until); err != nil {
			return errs.Wrap(errs.KindInternal, "lock account", err)
		}
		if s.audit != nil {
			_ = s.audit.Log(ctx, nil, entities.EventAccountLocked, &userID, entities.ActorSystem, "user", &userID, "account locked after repeated authentication failures", map[string]interface{}{
				"failed_attempts": l.FailedAttempts,
				"locked_until":    until,
			})
		}
	}
	return nil
}

// Reset clears the failure counter and any lock, invoked after a successful
// authentication.
func (s *Service) Reset(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Reset(ctx, userID); err != nil {
		return errs.Wrap(errs.KindInternal, "reset account lockout", err)
	}
	return nil
}

// Package session implements session lookup and revocation decoupled from
// JWT expiry (I1): a session is valid only while its row exists and is
// unrevoked (no session expiry is stored or checked here), so revoking a
// session takes effect on the very next request even if the bearer token
// itself has not expired yet.
package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/audit"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/security/crypto"
)

const (
	cacheTTL       = 30 * time.Second
	cacheKeyPrefix = "session:"
	maxConcurrent  = 5
)

// Repository persists sessions. Implemented by
// internal/infrastructure/repositories against Store.
type Repository interface {
	Insert(ctx context.Context, tx *store.Tx, s *entities.Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*entities.Session, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	RevokeOldest(ctx context.Context, userID uuid.UUID, reason entities.RevocationReason) error
	RevokeByID(ctx context.Context, tx *store.Tx, id uuid.UUID, reason entities.RevocationReason) (bool, error)
	RevokeAllForUser(ctx context.Context, tx *store.Tx, userID uuid.UUID, reason entities.RevocationReason, except *uuid.UUID) (int64, error)
	RevokeAllForTeam(ctx context.Context, tx *store.Tx, teamID uuid.UUID, reason entities.RevocationReason) (int64, error)
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// Service manages the session lifecycle: creation, validation against
// Redis-cached lookups with a Postgres fallback, and revocation.
type Service struct {
	repo    Repository
	redis   *redis.Client
	audit   *audit.Service
	logger  *zap.Logger
}

func NewService(repo Repository, redisClient *redis.Client, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{repo: repo, redis: redisClient, audit: auditSvc, logger: logger}
}

// Create issues a new session row for a freshly authenticated bearer token,
// first evicting the oldest active session if the user is already at the
// concurrent-session limit.
func (s *Service) Create(ctx context.Context, tx *store.Tx, userID uuid.UUID, teamID *uuid.UUID, token, ipAddress, userAgent string, expiresIn time.Duration) (*entities.Session, error) {
	count, err := s.repo.CountActive(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "count active sessions", err)
	}
	if count >= maxConcurrent {
		if err := s.repo.RevokeOldest(ctx, userID, entities.ReasonSessionExpired); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "evict oldest session", err)
		}
	}

	sess := &entities.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: crypto.TokenHash(token),
		TeamID:    teamID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}
	_ = expiresIn // session lifetime is tracked by the identity provider's token; this module only tracks revocation state

	if err := s.repo.Insert(ctx, tx, sess); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "insert session", err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventSessionCreated, &userID, entities.ActorUser, "session", &sess.ID, "session created", nil); err != nil {
			return nil, err
		}
	}

	s.cache(ctx, sess)
	return sess, nil
}

// Validate implements the exact lookup sequence from SPEC_FULL.md §4.6:
// cache hit returns immediately; a cache miss falls through to Postgres;
// missing or revoked sessions are rejected (revoked sessions also emit an
// audit event so repeated use of a revoked token is itself observable);
// last_used_at is updated best-effort and never blocks the caller.
func (s *Service) Validate(ctx context.Context, token string) (*entities.Session, error) {
	tokenHash := crypto.TokenHash(token)

	if cached := s.fromCache(ctx, tokenHash); cached != nil {
		if cached.IsRevoked() {
			s.rejectRevoked(ctx, cached)
			return nil, errs.New(errs.KindSessionRevoked, "session has been revoked")
		}
		go s.touchLastUsed(cached.ID)
		return cached, nil
	}

	sess, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindUnauthenticated, "session not found")
		}
		return nil, errs.Wrap(errs.KindInternal, "find session", err)
	}

	if sess.IsRevoked() {
		s.rejectRevoked(ctx, sess)
		return nil, errs.New(errs.KindSessionRevoked, "session has been revoked")
	}

	s.cache(ctx, sess)
	go s.touchLastUsed(sess.ID)
	return sess, nil
}

func (s *Service) rejectRevoked(ctx context.Context, sess *entities.Session) {
	if s.audit == nil {
		return
	}
	details := map[string]interface{}{}
	if sess.RevocationReason != nil {
		details["revocation_reason"] = string(*sess.RevocationReason)
	}
	_ = s.audit.Log(ctx, nil, entities.EventSessionRejected, &sess.UserID, entities.ActorUser, "session", &sess.ID, "rejected use of revoked session", details)
}

// Revoke invalidates a single session. Idempotent: revoking an
// already-revoked session is a no-op that still reports success.
func (s *Service) Revoke(ctx context.Context, tx *store.Tx, sessionID uuid.UUID, reason entities.RevocationReason) error {
	changed, err := s.repo.RevokeByID(ctx, tx, sessionID, reason)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "revoke session", err)
	}
	if changed && s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventSessionRevoked, nil, entities.ActorSystem, "session", &sessionID, "session revoked", map[string]interface{}{"reason": string(reason)}); err != nil {
			return err
		}
	}
	s.invalidateCacheBySessionID(ctx, sessionID)
	return nil
}

// RevokeAllForUser revokes every active session belonging to userID, except
// the one named by except (used when a user changes their own password and
// should keep the session that made the request). Used by the authorization
// engine under I4 when a role change must take effect immediately.
func (s *Service) RevokeAllForUser(ctx context.Context, tx *store.Tx, userID uuid.UUID, reason entities.RevocationReason, except *uuid.UUID) error {
	n, err := s.repo.RevokeAllForUser(ctx, tx, userID, reason, except)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "revoke user sessions", err)
	}
	if n > 0 && s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventSessionRevoked, &userID, entities.ActorSystem, "user", &userID, "all user sessions revoked", map[string]interface{}{"reason": string(reason), "count": n}); err != nil {
			return err
		}
	}
	return nil
}

// RevokeAllForTeam revokes every active session scoped to teamID, used when
// a team is suspended or deleted.
func (s *Service) RevokeAllForTeam(ctx context.Context, tx *store.Tx, teamID uuid.UUID, reason entities.RevocationReason) error {
	n, err := s.repo.RevokeAllForTeam(ctx, tx, teamID, reason)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "revoke team sessions", err)
	}
	if n > 0 && s.audit != nil {
		if err := s.audit.Log(ctx, tx, entities.EventSessionRevoked, nil, entities.ActorSystem, "team", &teamID, "all team sessions revoked", map[string]interface{}{"reason": string(reason), "count": n}); err != nil {
			return err
		}
	}
	return nil
}

// CleanupExpired deletes revoked sessions whose revoked_at is older than
// olderThan; unrevoked sessions are never deleted. Invoked by the cleanup
// worker, not by request handlers.
func (s *Service) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, "cleanup expired sessions", err)
	}
	return n, nil
}

func (s *Service) touchLastUsed(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.repo.TouchLastUsed(ctx, id, time.Now().UTC()); err != nil {
		s.logger.Debug("touch last_used_at failed", zap.Error(err), zap.String("session_id", id.String()))
	}
}

// Package workers runs the module's periodic maintenance jobs: expired
// idempotency key eviction and expired-session cleanup. Idempotency keys
// are deleted in bounded batches; session cleanup deletes every qualifying
// row in a single statement. The scheduler has the same shape the teacher's
// wallet-provisioning scheduler uses for its own periodic sweeps.
package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/idempotency"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/session"
)

// DefaultSessionRetention is how long a revoked session row is kept
// before CleanupExpired purges it.
const DefaultSessionRetention = 30 * 24 * time.Hour

// Scheduler owns the cron instance running both maintenance jobs.
type Scheduler struct {
	cron        *cron.Cron
	idempotency *idempotency.Service
	sessions    *session.Service
	logger      *zap.Logger
}

func NewScheduler(idempotencySvc *idempotency.Service, sessionSvc *session.Service, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		idempotency: idempotencySvc,
		sessions:    sessionSvc,
		logger:      logger,
	}
}

// Start registers both jobs and begins the cron scheduler. Idempotency keys
// are swept hourly since their TTL is measured in hours; sessions are swept
// daily since their retention is measured in weeks.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.runIdempotencyCleanup); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@daily", s.runSessionCleanup); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop blocks until any in-flight job finishes, then halts the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runIdempotencyCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.idempotency.Cleanup(ctx)
	if err != nil {
		s.logger.Error("idempotency cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("idempotency cleanup complete", zap.Int64("deleted", deleted))
}

func (s *Scheduler) runSessionCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.sessions.CleanupExpired(ctx, DefaultSessionRetention)
	if err != nil {
		s.logger.Error("session cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("session cleanup complete", zap.Int64("deleted", deleted))
}

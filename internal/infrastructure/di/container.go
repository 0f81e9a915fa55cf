// Package di constructs every subsystem exactly once at process startup and
// hands the wired graph to cmd/server: the store pool, the Redis client,
// every domain service, and the shared ambient infrastructure (logger,
// metrics, circuit breakers, rate limiter) they depend on.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/audit"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/authorization"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/idempotency"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/lockout"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/payments"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/session"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/webhook"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/config"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/repositories"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/circuitbreaker"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/ratelimit"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/security"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/validation"
)

// Container holds every constructed subsystem. cmd/server wires routes and
// workers off of this; nothing outside this package calls a repository or
// store constructor directly.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Store *store.Store
	Redis *redis.Client

	Audit         *audit.Service
	Sessions      *session.Service
	Authorization *authorization.Service
	Idempotency   *idempotency.Service
	Payments      *payments.Service
	Webhooks      *webhook.Service
	Lockout       *lockout.Service

	RateLimiter      *ratelimit.Limiter
	CircuitBreakers  *circuitbreaker.Registry
	Validator        *validation.Validator
	WebhookIPGuard   *security.WebhookIPWhitelist
	WebhookRateGuard *security.WebhookRateLimiter
}

// Build constructs the full dependency graph. Callers must call Close when
// done (normally on process shutdown).
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	breakers := circuitbreaker.NewRegistry(logger)

	db, err := store.Open(store.Config{
		URL:              cfg.DatabaseURL,
		MinConns:         cfg.DatabaseMinConns,
		MaxConns:         cfg.DatabaseMaxConns,
		StatementTimeout: store.DefaultStatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("di: open store: %w", err)
	}
	db.SetBreaker(breakers.Get("postgres"))
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("di: ping store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("di: apply migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("di: ping redis: %w", err)
	}

	auditRepo := repositories.NewAuditRepository(db.DB)
	sessionRepo := repositories.NewSessionRepository(db.DB)
	membershipRepo := repositories.NewMembershipRepository(db.DB)
	idempotencyRepo := repositories.NewIdempotencyRepository(db.DB)
	paymentRepo := repositories.NewPaymentRepository(db.DB)
	webhookRepo := repositories.NewWebhookRepository(db.DB)
	lockoutRepo := repositories.NewLockoutRepository(db.DB)

	auditSvc := audit.NewService(auditRepo, cfg.AuditHMACSecret, logger)
	sessionSvc := session.NewService(sessionRepo, redisClient, auditSvc, logger)
	authzSvc := authorization.NewService(membershipRepo, sessionSvc, auditSvc, logger)
	idempotencySvc := idempotency.NewService(idempotencyRepo)
	paymentsSvc := payments.NewService(paymentRepo, db, auditSvc, logger)
	lockoutSvc := lockout.NewService(lockoutRepo, auditSvc, logger)

	webhookSvc := webhook.NewService(webhookRepo, cfg.WebhookSecrets, logger)

	limiter := ratelimit.New(redisClient, ratelimit.DefaultLimits(), logger)
	limiter.SetBreaker(breakers.Get("redis"))
	validator := validation.New()

	var ipGuard *security.WebhookIPWhitelist
	if cfg.WebhookIPAllowlistEnabled {
		ipGuard = security.NewWebhookIPWhitelist(cfg.WebhookAllowedCIDRs, logger)
	}

	var rateGuard *security.WebhookRateLimiter
	if cfg.WebhookRateLimitEnabled {
		limits := make(map[string]security.WebhookRateLimit, len(cfg.WebhookRateLimits))
		for provider, l := range cfg.WebhookRateLimits {
			limits[provider] = security.WebhookRateLimit{MaxRequests: l.MaxRequests, Window: time.Duration(l.WindowSecs) * time.Second}
		}
		rateGuard = security.NewWebhookRateLimiter(redisClient, limits, logger)
	}

	return &Container{
		Config: cfg,
		Logger: logger,

		Store: db,
		Redis: redisClient,

		Audit:         auditSvc,
		Sessions:      sessionSvc,
		Authorization: authzSvc,
		Idempotency:   idempotencySvc,
		Payments:      paymentsSvc,
		Webhooks:      webhookSvc,
		Lockout:       lockoutSvc,

		RateLimiter:      limiter,
		CircuitBreakers:  breakers,
		Validator:        validator,
		WebhookIPGuard:   ipGuard,
		WebhookRateGuard: rateGuard,
	}, nil
}

// Close releases the store pool and Redis client. Safe to call once during
// graceful shutdown.
func (c *Container) Close() error {
	var firstErr error
	if err := c.Store.Close(); err != nil {
		firstErr = err
	}
	if err := c.Redis.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// HealthCheck reports the liveness of every subsystem the /ready endpoint
// depends on.
func (c *Container) HealthCheck(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return nil
}

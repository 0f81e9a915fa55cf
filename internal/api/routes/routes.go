// Package routes wires every SPEC_FULL.md HTTP operation onto a gin
// engine, against a single *di.Container. Route registration is the only
// place that assembles the middleware chain: security headers -> request
// timeout -> rate limit (per IP) -> for /webhooks and /auth, a per-group
// rate limit -> handler; for the authenticated routes, authenticate -> rate
// limit (per user) -> team scope (RequireRole) -> handler, or on /payments,
// payment rate limit -> idempotency replay -> RequireRole -> handler.
// Errors are written through the shared envelope (RespondError).
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/handlers"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/middleware"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/di"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/ratelimit"
)

// New builds the full gin engine for the given container.
func New(c *di.Container) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.SecurityHeaders(), middleware.RequestTimeout(middleware.DefaultRequestTimeout))
	engine.Use(middleware.RateLimit(c.RateLimiter, ratelimit.CategoryIP, middleware.ByClientIP, c.Logger))

	authHandler := handlers.NewAuthHandler(c.Sessions, c.Lockout, c.Store)
	teamHandler := handlers.NewTeamHandler(c.Authorization, c.Store)
	paymentHandler := handlers.NewPaymentHandler(c.Payments, c.Authorization, c.Idempotency, c.Store)
	webhookHandler := handlers.NewWebhookHandler(c.Webhooks, c.WebhookIPGuard, c.WebhookRateGuard)
	healthHandler := handlers.NewHealthHandler(c)

	engine.GET("/live", healthHandler.Live)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/health", healthHandler.Health)

	// Webhooks authenticate via signature, not bearer token, so they sit
	// outside the Authenticate chain entirely.
	webhooks := engine.Group("/webhooks")
	webhooks.Use(middleware.RateLimit(c.RateLimiter, ratelimit.CategoryEndpoint, middleware.ByClientIP, c.Logger))
	webhooks.POST("/:provider", webhookHandler.Receive)

	auth := engine.Group("/auth")
	auth.Use(middleware.RateLimit(c.RateLimiter, ratelimit.CategoryLogin, middleware.ByClientIP, c.Logger))
	auth.POST("/login", authHandler.Login)
	auth.POST("/failures", authHandler.ReportFailure)

	authenticated := engine.Group("")
	authenticated.Use(middleware.Authenticate(c.Sessions))
	authenticated.Use(middleware.RateLimit(c.RateLimiter, ratelimit.CategoryUser, middleware.ByUserID, c.Logger))
	authenticated.POST("/auth/logout", authHandler.Logout)

	teams := authenticated.Group("/teams/:team_id")
	teams.POST("/members", middleware.RequireRole(c.Authorization, entities.RoleAdmin), teamHandler.AddMember)
	teams.PATCH("/members/:user_id", middleware.RequireRole(c.Authorization, entities.RoleAdmin), teamHandler.ChangeRole)
	teams.DELETE("/members/:user_id", middleware.RequireRole(c.Authorization, entities.RoleAdmin), teamHandler.RemoveMember)

	payments := authenticated.Group("/payments")
	payments.Use(middleware.RateLimit(c.RateLimiter, ratelimit.CategoryPayment, middleware.ByUserID, c.Logger))
	payments.Use(middleware.IdempotencyReplay(c.Idempotency))
	payments.POST("", paymentHandler.Create)
	payments.POST("/:id/complete", middleware.RequireRole(c.Authorization, entities.RoleAdmin), paymentHandler.Complete)
	payments.POST("/:id/fail", middleware.RequireRole(c.Authorization, entities.RoleAdmin), paymentHandler.Fail)
	payments.POST("/:id/cancel", paymentHandler.Cancel)
	payments.POST("/:id/refund", middleware.RequireRole(c.Authorization, entities.RoleAdmin), paymentHandler.Refund)

	return engine
}

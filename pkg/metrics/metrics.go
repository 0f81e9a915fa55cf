// Package metrics registers the module's prometheus counters and
// histograms at package init via promauto, the convention this module's
// reference webhook-verification code uses for naming and registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RateLimitChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_core_rate_limit_checks_total",
		Help: "Total rate limit checks by category and outcome",
	}, []string{"category", "outcome"})

	CircuitBreakerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_core_circuit_breaker_state_changes_total",
		Help: "Total circuit breaker state transitions by dependency and target state",
	}, []string{"dependency", "to_state"})

	IdempotencyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_core_idempotency_outcomes_total",
		Help: "Total idempotency check outcomes",
	}, []string{"outcome"})

	AuditIntegrityFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_core_audit_integrity_failures_total",
		Help: "Total tampered or chain-broken audit entries detected by verification",
	}, []string{"failure_type"})

	WebhookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_core_webhook_outcomes_total",
		Help: "Total webhook deliveries by provider and outcome",
	}, []string{"provider", "outcome"})

	SessionRevocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_core_session_revocations_total",
		Help: "Total session revocations by reason",
	}, []string{"reason"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "security_core_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

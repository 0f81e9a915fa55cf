package store

import (
	"context"
	"time"
)

// HealthStatus is the result of a connectivity probe, used by the /health
// endpoint to report this subsystem.
type HealthStatus struct {
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck runs a trivial query to verify the pool can still reach
// Postgres within a bounded deadline.
func (s *Store) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	var ok int
	err := s.DB.QueryRowContext(ctx, "SELECT 1").Scan(&ok)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return HealthStatus{Healthy: false, LatencyMS: latency, Error: err.Error()}
	}
	return HealthStatus{Healthy: true, LatencyMS: latency}
}

package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Spec defaults per SPEC_FULL.md §4.4.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
	DefaultHalfOpenMaxCalls = 1
)

// Registry lazily constructs and caches one CircuitBreaker per named
// dependency (e.g. "stripe", "postgres-replica"), so callers don't have to
// thread breaker instances through every call site by hand.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker), logger: logger}
}

// Get returns the breaker for name, creating it with the spec defaults on
// first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := New(Config{
		MaxRequests:      DefaultHalfOpenMaxCalls,
		Interval:         0,
		Timeout:          DefaultResetTimeout,
		FailureThreshold: DefaultFailureThreshold,
		OnStateChange: func(from, to State) {
			if r.logger != nil {
				r.logger.Info("circuit breaker state change",
					zap.String("dependency", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	})
	r.breakers[name] = cb
	return cb
}

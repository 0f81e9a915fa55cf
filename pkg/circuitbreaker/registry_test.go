package circuitbreaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRegistry_GetCachesBreakerPerName(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	a := r.Get("postgres")
	b := r.Get("postgres")
	assert.Same(t, a, b, "Get must return the same instance for the same name")
}

func TestRegistry_GetIsolatesBreakersByName(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	postgres := r.Get("postgres")
	redis := r.Get("redis")
	assert.NotSame(t, postgres, redis)
}

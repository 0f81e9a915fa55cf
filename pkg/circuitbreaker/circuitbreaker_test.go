package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{
		MaxRequests:      1,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	})

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func() error { return errUpstream })
		require.ErrorIs(t, err, errUpstream)
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	require.Error(t, err, "an open breaker must reject calls without invoking fn")
}

func TestCircuitBreaker_ClosedStateLetsCallsThrough(t *testing.T) {
	cb := New(Config{FailureThreshold: 5, Timeout: 30 * time.Second})

	err := cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterTimeoutProbesAndRecloses(t *testing.T) {
	cb := New(Config{
		MaxRequests:      1,
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
	})

	err := cb.Execute(context.Background(), func() error { return errUpstream })
	require.ErrorIs(t, err, errUpstream)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	err = cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err, "the probe call after Timeout elapses must be let through")
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_StateChangeCallbackFires(t *testing.T) {
	var transitions []State
	cb := New(Config{
		FailureThreshold: 1,
		Timeout:          30 * time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, to)
		},
	})

	err := cb.Execute(context.Background(), func() error { return errUpstream })
	require.ErrorIs(t, err, errUpstream)

	require.NotEmpty(t, transitions)
	assert.Equal(t, StateOpen, transitions[len(transitions)-1])
}

func TestCircuitBreaker_ContextCancellationPropagates(t *testing.T) {
	cb := New(Config{FailureThreshold: 5, Timeout: 30 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error {
		t.Fatal("fn must not run once ctx is already done")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 3})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	require.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerRecoversViaHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	time.Sleep(15 * time.Millisecond)
	require.Error(t, cb.Execute(func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 2})
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	assert.Equal(t, StateClosed, cb.GetState(), "non-consecutive failures do not trip the breaker")
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "op", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := Retry(context.Background(), "op", RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, attempts)
}

func TestRetryAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, "op", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "no further attempts once the context is done")
}

func TestComputeDelayRespectsMax(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       200 * time.Millisecond,
		Multiplier:     10,
		JitterFraction: 0.01,
	}
	d := computeDelay(5, cfg)
	assert.LessOrEqual(t, d, cfg.MaxDelay)
	assert.Greater(t, d, time.Duration(0))
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryStrategy_ShouldRetry(t *testing.T) {
	r := NewRetryStrategy(DefaultRetryConfig())
	assert.True(t, r.ShouldRetry(errors.New("connection refused")))
	assert.False(t, r.ShouldRetry(errors.New("401 unauthorized")))
}

func TestRetryStrategy_NextDelayNoJitter(t *testing.T) {
	r := NewRetryStrategy(RetryConfig{
		MaxAttempts:       5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	})

	assert.Equal(t, 100*time.Millisecond, r.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, r.NextDelay(1))
	assert.Equal(t, 400*time.Millisecond, r.NextDelay(2))
	assert.Equal(t, 1*time.Second, r.NextDelay(4)) // capped at max
}

func TestExecuteWithRetry_SucceedsAfterFailures(t *testing.T) {
	r := NewRetryStrategy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2, Jitter: false})

	calls := 0
	result := r.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 2, result.Attempts)
}

func TestExecuteWithRetry_NonRetryableStopsAtOne(t *testing.T) {
	r := NewRetryStrategy(DefaultRetryConfig())

	calls := 0
	result := r.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("401 unauthorized")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetry_ExhaustsMaxAttempts(t *testing.T) {
	r := NewRetryStrategy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2, Jitter: false})

	result := r.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("503 service unavailable")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

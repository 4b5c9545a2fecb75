package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	clerr "github.com/skillcore/skillcore/pkg/errors"
)

// RetryConfig parameterizes C2's backoff curve.
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryConfig mirrors the spec's defaults (§4.2).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryResult is the tagged result ExecuteWithRetry returns; control flow
// never relies on panics here, only this struct.
type RetryResult struct {
	Success   bool
	Value     interface{}
	Error     error
	ErrorKind clerr.ErrorKind
	Attempts  int
}

// RetryStrategy decides retryability and paces retries with exponential
// backoff plus optional jitter, built on cenkalti/backoff/v4's
// ExponentialBackOff, grounded in the worker's retry handler.
type RetryStrategy struct {
	config RetryConfig
}

// NewRetryStrategy builds a strategy from config, filling in defaults for
// zero fields.
func NewRetryStrategy(config RetryConfig) *RetryStrategy {
	d := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = d.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = d.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = d.MaxDelay
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = d.BackoffMultiplier
	}
	return &RetryStrategy{config: config}
}

// ShouldRetry reports whether err's classification is in the retryable set.
func (r *RetryStrategy) ShouldRetry(err error) bool {
	return clerr.Classify(err).Retryable()
}

// NextDelay computes the delay before attempt index i (0-based), per §4.2 and
// invariant 10: min(max_delay, base_delay * multiplier^i), floored at the
// error kind's base wait hint, then jittered if configured.
func (r *RetryStrategy) NextDelay(attemptIndex int) time.Duration {
	return r.nextDelay(attemptIndex, clerr.KindUnknown)
}

func (r *RetryStrategy) nextDelay(attemptIndex int, kind clerr.ErrorKind) time.Duration {
	delay := float64(r.config.BaseDelay)
	for i := 0; i < attemptIndex; i++ {
		delay *= r.config.BackoffMultiplier
	}
	d := time.Duration(delay)
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	if hint := kind.BaseWaitHint(); d < hint {
		d = hint
	}
	if r.config.Jitter {
		factor := 0.5 + rand.Float64() // uniform in [0.5, 1.5)
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// ExecuteWithRetry runs fn up to MaxAttempts times, sleeping NextDelay
// between attempts, aborting the sleep (not the already-started attempt) on
// context cancellation. Non-retryable classifications short-circuit to a
// single attempt (invariant 3).
func (r *RetryStrategy) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) RetryResult {
	attempts := 0
	var lastErr error
	var lastKind clerr.ErrorKind

	operation := func() (interface{}, error) {
		attempts++
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		lastKind = clerr.Classify(err)
		if !lastKind.Retryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	base := &boundedBackoff{strategy: r, kind: func() clerr.ErrorKind { return lastKind }}
	bo := backoff.WithContext(backoff.WithMaxRetries(base, uint64(r.config.MaxAttempts-1)), ctx)

	value, err := backoff.RetryWithData(operation, bo)
	if err != nil {
		return RetryResult{Success: false, Error: lastErr, ErrorKind: lastKind, Attempts: attempts}
	}
	return RetryResult{Success: true, Value: value, Attempts: attempts}
}

// boundedBackoff adapts RetryStrategy.NextDelay to backoff.BackOff, feeding
// through the classification of the most recent failure so rate-limit
// errors get their 10s floor even inside the generic backoff loop.
type boundedBackoff struct {
	strategy *RetryStrategy
	kind     func() clerr.ErrorKind
	attempt  int
}

func (b *boundedBackoff) NextBackOff() time.Duration {
	d := b.strategy.nextDelay(b.attempt, b.kind())
	b.attempt++
	return d
}

func (b *boundedBackoff) Reset() {
	b.attempt = 0
}

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skillcore/skillcore/pkg/observability"
)

func testBreaker() *CircuitBreaker {
	return NewCircuitBreaker("test_op", CircuitBreakerConfig{FailureThreshold: 3, CooldownTimeout: 20 * time.Millisecond}, observability.NewNoopLogger(), observability.NewNoOpMetricsClient())
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := testBreaker()

	assert.True(t, cb.CanAttempt())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CanAttempt())
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb := testBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.CanAttempt())

	time.Sleep(25 * time.Millisecond)
	assert.True(t, cb.CanAttempt())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb := testBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(25 * time.Millisecond)
	require := assert.New(t)
	require.True(cb.CanAttempt())

	cb.RecordSuccess()
	require.Equal(StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(25 * time.Millisecond)
	cb.CanAttempt()

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "counter should have reset after the intervening success")
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := testBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.CanAttempt())
}

func TestManager_LazyCreatesPerOperation(t *testing.T) {
	m := NewManager(CircuitBreakerConfig{FailureThreshold: 3, CooldownTimeout: time.Second}, observability.NewNoopLogger(), observability.NewNoOpMetricsClient())

	a := m.Get("op_a")
	b := m.Get("op_b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, m.Get("op_a"))

	a.RecordFailure()
	a.RecordFailure()
	a.RecordFailure()

	snap := m.Snapshot()
	assert.Equal(t, StateOpen, snap["op_a"])
	assert.Equal(t, StateClosed, snap["op_b"])
}

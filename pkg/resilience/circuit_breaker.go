package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillcore/skillcore/pkg/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls the count-threshold-only trip condition used
// by the resilience engine. Unlike the ratio/minimum-request-count variant
// this package used to carry, a single operation's consecutive failures are
// what trips the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before tripping. Default 3.
	CooldownTimeout  time.Duration // time in open state before a probe is allowed. Default 60s.
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.CooldownTimeout <= 0 {
		c.CooldownTimeout = 60 * time.Second
	}
	return c
}

// CircuitBreaker is a per-operation gate: CanAttempt/RecordSuccess/RecordFailure
// form a pull-based protocol the caller drives itself, rather than wrapping a
// function call. State is held in an atomic.Value for lock-free reads; all
// mutations take the mutex.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu              sync.Mutex
	state           atomic.Value // State
	failureCount    int
	openedAt        time.Time
	lastStateChange time.Time

	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewCircuitBreaker creates a breaker for a single operation name.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger observability.Logger, metrics observability.MetricsClient) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:    name,
		config:  config.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
	cb.state.Store(StateClosed)
	cb.lastStateChange = time.Now()
	return cb
}

// CanAttempt reports whether a call may proceed. If the breaker is open and
// the cooldown has elapsed it flips to half_open and returns true. While
// half_open every call returns true, until a recorded outcome closes or
// reopens the breaker.
func (cb *CircuitBreaker) CanAttempt() bool {
	switch cb.currentState() {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.currentState() != StateOpen {
			return true
		}
		if time.Since(cb.openedAt) >= cb.config.CooldownTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful attempt. In half_open it closes the
// breaker; in closed it resets the consecutive failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	if cb.currentState() == StateHalfOpen {
		cb.transitionTo(StateClosed)
	}
	if cb.metrics != nil {
		cb.metrics.IncrementCounterWithLabels("circuit_breaker_successes_total", 1, map[string]string{"operation": cb.name})
	}
}

// RecordFailure records a failed attempt. A failure while half_open reopens
// the breaker immediately; in closed it trips once failureCount reaches the
// configured threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
	}
	if cb.metrics != nil {
		cb.metrics.IncrementCounterWithLabels("circuit_breaker_failures_total", 1, map[string]string{"operation": cb.name})
	}
}

// Reset forces the breaker back to closed, clearing failure counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.transitionTo(StateClosed)
}

// State returns the current state for inspection (status surfaces, tests).
func (cb *CircuitBreaker) State() State {
	return cb.currentState()
}

func (cb *CircuitBreaker) currentState() State {
	return cb.state.Load().(State)
}

// transitionTo must be called with mu held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := cb.currentState()
	if oldState == newState {
		return
	}
	cb.state.Store(newState)
	cb.lastStateChange = time.Now()
	if newState == StateOpen {
		cb.openedAt = time.Now()
	}
	if cb.logger != nil {
		cb.logger.Info("circuit breaker state changed", map[string]interface{}{
			"operation": cb.name,
			"from":      oldState.String(),
			"to":        newState.String(),
		})
	}
	if cb.metrics != nil {
		cb.metrics.RecordGauge("circuit_breaker_state", float64(newState), map[string]string{"operation": cb.name})
	}
}

// Manager lazily creates and owns one CircuitBreaker per operation name.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
	logger   observability.Logger
	metrics  observability.MetricsClient
}

// NewManager creates a circuit breaker manager. Every operation name gets
// the same config; per-operation overrides are not needed by the spec this
// daemon implements.
func NewManager(config CircuitBreakerConfig, logger observability.Logger, metrics observability.MetricsClient) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Get returns the breaker for an operation, creating it on first use.
func (m *Manager) Get(operationName string) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[operationName]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok = m.breakers[operationName]; ok {
		return cb
	}
	cb = NewCircuitBreaker(operationName, m.config, m.logger, m.metrics)
	m.breakers[operationName] = cb
	return cb
}

// Snapshot returns the state of every breaker created so far, for the
// embedded status surface.
func (m *Manager) Snapshot() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.breakers))
	for name, cb := range m.breakers {
		out[name] = cb.State()
	}
	return out
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillcore/skillcore/internal/creative"
	"github.com/skillcore/skillcore/internal/failure"
	"github.com/skillcore/skillcore/internal/progress"
	"github.com/skillcore/skillcore/internal/strategy"
	"github.com/skillcore/skillcore/pkg/observability"
	"github.com/skillcore/skillcore/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	logger := observability.NewNoopLogger()
	metricsClient := observability.NewNoOpMetricsClient()

	retry := resilience.NewRetryStrategy(resilience.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2, Jitter: false})
	breakers := resilience.NewManager(resilience.CircuitBreakerConfig{FailureThreshold: 5, CooldownTimeout: time.Second}, logger, metricsClient)
	analyzer := failure.New(failure.Config{}, nil)
	explorer := strategy.NewExplorer()
	solver := creative.NewSolver(nil)
	tracker := progress.NewTracker()
	bulkhead := resilience.NewBulkhead("test", resilience.BulkheadConfig{MaxConcurrentCalls: 5, QueueTimeout: time.Second}, logger, metricsClient)

	return New(config, retry, breakers, analyzer, explorer, solver, tracker, bulkhead)
}

func TestExecute_SucceedsOnFirstAttempt(t *testing.T) {
	e := testEngine(t, Config{})
	result := e.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, "op", nil)

	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Value)
}

func TestExecute_RetriesThenFails(t *testing.T) {
	e := testEngine(t, Config{EnableCreativeSolving: true})
	result := e.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("500 internal server error")
	}, "op", nil)

	assert.False(t, result.Success)
	assert.GreaterOrEqual(t, result.Attempts, 1)
}

func TestExecuteWithAlternatives_SequentialFirstSuccessWins(t *testing.T) {
	e := testEngine(t, Config{})
	strategies := []strategy.Strategy{
		{Name: "a", Priority: 1.0, CostEstimate: 1, TimeEstimate: 1},
		{Name: "b", Priority: 0.5, CostEstimate: 1, TimeEstimate: 1},
	}

	result := e.ExecuteWithAlternatives(context.Background(), func(ctx context.Context, s strategy.Strategy) (interface{}, error) {
		if s.Name == "a" {
			return nil, errors.New("fail")
		}
		return "from b", nil
	}, strategies, "op", false)

	assert.True(t, result.Success)
	assert.Equal(t, "from b", result.Value)
	assert.Equal(t, []string{"a", "b"}, result.StrategiesTried)
}

func TestExecuteWithAlternatives_ParallelFirstSuccessWins(t *testing.T) {
	e := testEngine(t, Config{MaxParallelStrategies: 2})
	strategies := []strategy.Strategy{
		{Name: "a", Priority: 1.0, CostEstimate: 1, TimeEstimate: 1},
		{Name: "b", Priority: 0.9, CostEstimate: 1, TimeEstimate: 1},
	}

	result := e.ExecuteWithAlternatives(context.Background(), func(ctx context.Context, s strategy.Strategy) (interface{}, error) {
		if s.Name == "a" {
			return "from a", nil
		}
		return nil, errors.New("fail")
	}, strategies, "op", true)

	assert.True(t, result.Success)
	require.NotNil(t, result.Value)
}

func TestExecuteWithAlternatives_AllFailReturnsError(t *testing.T) {
	e := testEngine(t, Config{})
	strategies := []strategy.Strategy{
		{Name: "a", Priority: 1.0, CostEstimate: 1, TimeEstimate: 1},
	}

	result := e.ExecuteWithAlternatives(context.Background(), func(ctx context.Context, s strategy.Strategy) (interface{}, error) {
		return nil, errors.New("fail")
	}, strategies, "op", false)

	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

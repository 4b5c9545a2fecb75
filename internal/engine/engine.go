// Package engine implements the Resilience Engine (C8): the orchestrator
// that wires the classifier, retry strategy, circuit breaker, failure
// analyzer, alternative explorer, creative solver, and progress tracker
// into a single fault-tolerant executor.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skillcore/skillcore/internal/creative"
	"github.com/skillcore/skillcore/internal/failure"
	"github.com/skillcore/skillcore/internal/progress"
	"github.com/skillcore/skillcore/internal/strategy"
	clerr "github.com/skillcore/skillcore/pkg/errors"
	"github.com/skillcore/skillcore/pkg/observability"
	"github.com/skillcore/skillcore/pkg/resilience"
)

// OperationContext carries the caller's attempt history and metadata
// through a single Execute/ExecuteWithAlternatives call.
type OperationContext struct {
	Attempts int
	Metadata map[string]interface{}
}

// Result is the outcome of Execute or ExecuteWithAlternatives.
type Result struct {
	Success         bool
	Value           interface{}
	Error           error
	ErrorKind       clerr.ErrorKind
	Attempts        int
	StrategiesTried []string
	TotalTime       time.Duration
	FailureAnalysis *failure.Analysis
	Recommendations []string
}

// Config parameterizes engine-level behavior not owned by a single
// sub-component.
type Config struct {
	EnableCreativeSolving bool
	MaxParallelStrategies int
	MaxTotalTime          time.Duration // 0 = unlimited
}

// Fn is a unit of work an engine call attempts.
type Fn func(ctx context.Context) (interface{}, error)

// Engine orchestrates C1 (via Classify inside the retry strategy), C2, C3,
// C4, C5, C6, and C7 behind Execute/ExecuteWithAlternatives.
type Engine struct {
	config   Config
	retry    *resilience.RetryStrategy
	breakers *resilience.Manager
	analyzer *failure.Analyzer
	explorer *strategy.Explorer
	solver   *creative.Solver
	tracker  *progress.Tracker
	bulkhead *resilience.Bulkhead

	mu        sync.Mutex
	totalCost float64
}

// New wires the supplied sub-components into an Engine.
func New(config Config, retry *resilience.RetryStrategy, breakers *resilience.Manager, analyzer *failure.Analyzer, explorer *strategy.Explorer, solver *creative.Solver, tracker *progress.Tracker, bulkhead *resilience.Bulkhead) *Engine {
	return &Engine{
		config:   config,
		retry:    retry,
		breakers: breakers,
		analyzer: analyzer,
		explorer: explorer,
		solver:   solver,
		tracker:  tracker,
		bulkhead: bulkhead,
	}
}

// Execute runs fn under a single strategy's retry policy. On terminal
// failure with creative solving enabled, it analyzes the recent failure
// pattern and, when a pattern is found, adds the creative solver's
// workaround tactics to Recommendations; no fallback operation is run.
func (e *Engine) Execute(ctx context.Context, fn Fn, operationName string, opCtx *OperationContext) Result {
	ctx, span := observability.StartSpan(ctx, "resilience.execute")
	defer span.End()
	span.SetAttribute("operation_name", operationName)

	start := time.Now()
	breaker := e.breakers.Get(operationName)

	if !breaker.CanAttempt() {
		span.SetAttribute("outcome", "circuit_open")
		circuitErr := clerr.CircuitOpenError(operationName)
		return Result{Success: false, Error: circuitErr, ErrorKind: circuitErr.Kind, TotalTime: time.Since(start)}
	}

	taskID := e.tracker.Start(operationName, nil)

	retryResult := e.retry.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		attemptStart := time.Now()
		value, err := fn(ctx)
		success := err == nil
		e.tracker.RecordAttempt(taskID, operationName, success, err, time.Since(attemptStart), nil)
		if !success {
			e.analyzer.RecordFailure(err, operationName)
		}
		return value, err
	})

	result := Result{
		Success:   retryResult.Success,
		Value:     retryResult.Value,
		Error:     retryResult.Error,
		ErrorKind: retryResult.ErrorKind,
		Attempts:  retryResult.Attempts,
	}

	if retryResult.Success {
		breaker.RecordSuccess()
		e.tracker.Complete(taskID, true, retryResult.Value)
		span.SetAttribute("outcome", "success")
	} else {
		breaker.RecordFailure()

		var analysis *failure.Analysis
		if e.config.EnableCreativeSolving {
			window := 10 * time.Minute
			a := e.analyzer.AnalyzePattern(&window)
			analysis = &a
			result.Recommendations = append(result.Recommendations, a.Recommendations...)
			if a.Pattern != failure.PatternNone {
				fallback := e.solver.Solve(ctx, fmt.Sprintf("%s failed: %v", operationName, retryResult.Error), creative.Context{Attempts: retryResult.Attempts}, nil)
				if fallback.Type == creative.TypeWorkaround && len(fallback.Workarounds) > 0 {
					result.Recommendations = append(result.Recommendations, fallback.Workarounds...)
				}
			}
		}
		result.FailureAnalysis = analysis
		e.tracker.Complete(taskID, false, nil)
		span.SetAttribute("outcome", "failure")
	}

	span.SetAttribute("attempts", result.Attempts)
	result.TotalTime = time.Since(start)
	return result
}

// ExecuteWithAlternatives ranks strategies via C5 and tries them either
// sequentially (first success wins, bounded by MaxTotalTime) or in parallel
// (first success wins, losers cancelled).
func (e *Engine) ExecuteWithAlternatives(ctx context.Context, fn func(ctx context.Context, s strategy.Strategy) (interface{}, error), strategies []strategy.Strategy, operationName string, parallel bool) Result {
	ctx, span := observability.StartSpan(ctx, "resilience.execute")
	defer span.End()
	span.SetAttribute("operation_name", operationName)

	start := time.Now()
	ranked := strategy.RankStrategies(strategies, strategy.GoalBalanced)

	var result Result
	if parallel {
		result = e.executeParallel(ctx, fn, ranked, operationName)
	} else {
		result = e.executeSequential(ctx, fn, ranked, operationName, start)
	}

	result.TotalTime = time.Since(start)
	if result.Success {
		span.SetAttribute("outcome", "success")
	} else {
		span.SetAttribute("outcome", "failure")
	}
	return result
}

func (e *Engine) executeSequential(ctx context.Context, fn func(ctx context.Context, s strategy.Strategy) (interface{}, error), ranked []strategy.Strategy, operationName string, start time.Time) Result {
	var lastErr error
	var lastKind clerr.ErrorKind
	var tried []string
	totalAttempts := 0

	for _, s := range ranked {
		if e.config.MaxTotalTime > 0 && time.Since(start) > e.config.MaxTotalTime {
			break
		}
		tried = append(tried, s.Name)

		retryResult := e.retry.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
			return fn(ctx, s)
		})
		totalAttempts += retryResult.Attempts
		e.recordStrategyOutcome(s, retryResult.Success)
		if retryResult.Success {
			return Result{Success: true, Value: retryResult.Value, Attempts: totalAttempts, StrategiesTried: tried}
		}
		lastErr = retryResult.Error
		lastKind = retryResult.ErrorKind
	}
	return Result{Success: false, Error: lastErr, ErrorKind: lastKind, Attempts: totalAttempts, StrategiesTried: tried}
}

type parallelOutcome struct {
	strategy strategy.Strategy
	value    interface{}
	err      error
}

func (e *Engine) executeParallel(ctx context.Context, fn func(ctx context.Context, s strategy.Strategy) (interface{}, error), ranked []strategy.Strategy, operationName string) Result {
	limit := e.config.MaxParallelStrategies
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	candidates := ranked[:limit]

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan parallelOutcome, len(candidates))
	var wg sync.WaitGroup

	for _, s := range candidates {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := e.bulkhead.Execute(runCtx, func(ctx context.Context) (interface{}, error) {
				return fn(ctx, s)
			})
			outcomes <- parallelOutcome{strategy: s, value: value, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	tried := make([]string, 0, len(candidates))
	var bestFailure parallelOutcome
	haveFailure := false

	for outcome := range outcomes {
		tried = append(tried, outcome.strategy.Name)
		e.recordStrategyOutcome(outcome.strategy, outcome.err == nil)
		if outcome.err == nil {
			cancel()
			return Result{Success: true, Value: outcome.value, Attempts: len(tried), StrategiesTried: tried}
		}
		if !haveFailure || outcome.strategy.Priority > bestFailure.strategy.Priority {
			bestFailure = outcome
			haveFailure = true
		}
	}

	return Result{Success: false, Error: bestFailure.err, ErrorKind: clerr.Classify(bestFailure.err), Attempts: len(tried), StrategiesTried: tried}
}

func (e *Engine) recordStrategyOutcome(s strategy.Strategy, success bool) {
	e.explorer.RecordOutcome(s.Name, success)
	e.mu.Lock()
	e.totalCost += s.CostEstimate
	e.mu.Unlock()
}

// TotalCost returns the cumulative cost_estimate of every strategy chosen so
// far.
func (e *Engine) TotalCost() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalCost
}

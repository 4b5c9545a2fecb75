// Package strategy implements the Alternative Explorer (C5): a static
// strategy template table per operation kind, goal-directed ranking, and
// per-strategy success-history tracking.
package strategy

import (
	"sort"
	"sync"
)

// Strategy is a named alternative implementation of an operation.
type Strategy struct {
	Name         string
	Priority     float64
	CostEstimate float64
	TimeEstimate float64
}

// Goal selects the ranking objective for RankStrategies.
type Goal string

const (
	GoalBalanced Goal = "balanced"
	GoalCost     Goal = "cost"
	GoalSpeed    Goal = "speed"
)

// templates is the static table keyed by operation kind. Priority, cost, and
// time estimates are relative, unitless figures used only for ranking.
var templates = map[string][]Strategy{
	"http_request": {
		{Name: "direct", Priority: 1.0, CostEstimate: 1.0, TimeEstimate: 1.0},
		{Name: "retry_with_backoff", Priority: 0.8, CostEstimate: 1.5, TimeEstimate: 2.5},
		{Name: "alternate_endpoint", Priority: 0.6, CostEstimate: 1.2, TimeEstimate: 1.5},
		{Name: "cached_response", Priority: 0.5, CostEstimate: 0.1, TimeEstimate: 0.1},
	},
	"llm_request": {
		{Name: "direct", Priority: 1.0, CostEstimate: 1.0, TimeEstimate: 1.0},
		{Name: "smaller_model", Priority: 0.7, CostEstimate: 0.3, TimeEstimate: 0.4},
		{Name: "chunked_request", Priority: 0.6, CostEstimate: 1.3, TimeEstimate: 2.0},
		{Name: "alternate_provider", Priority: 0.5, CostEstimate: 1.1, TimeEstimate: 1.3},
	},
	"tool_invocation": {
		{Name: "direct", Priority: 1.0, CostEstimate: 1.0, TimeEstimate: 1.0},
		{Name: "alternate_tool", Priority: 0.7, CostEstimate: 1.2, TimeEstimate: 1.4},
		{Name: "manual_fallback", Priority: 0.3, CostEstimate: 2.0, TimeEstimate: 3.0},
	},
	"skill_invocation": {
		{Name: "direct", Priority: 1.0, CostEstimate: 1.0, TimeEstimate: 1.0},
		{Name: "alternate_skill", Priority: 0.8, CostEstimate: 1.1, TimeEstimate: 1.2},
		{Name: "decomposed_skills", Priority: 0.5, CostEstimate: 1.8, TimeEstimate: 2.2},
	},
}

// Explorer enumerates and ranks strategies and tracks each one's observed
// success/failure counts.
type Explorer struct {
	mu           sync.Mutex
	successCount map[string]int
	failureCount map[string]int
}

// NewExplorer creates an empty explorer.
func NewExplorer() *Explorer {
	return &Explorer{
		successCount: make(map[string]int),
		failureCount: make(map[string]int),
	}
}

// EnumerateStrategies returns the template list for operationKind, omitting
// the strategy named by primary if non-nil.
func (e *Explorer) EnumerateStrategies(operationKind string, primary *string) []Strategy {
	table, ok := templates[operationKind]
	if !ok {
		return nil
	}
	out := make([]Strategy, 0, len(table))
	for _, s := range table {
		if primary != nil && s.Name == *primary {
			continue
		}
		out = append(out, s)
	}
	return out
}

// RankStrategies sorts list by goal, descending, with ties broken by
// priority then name. list is not mutated.
func RankStrategies(list []Strategy, goal Goal) []Strategy {
	ranked := append([]Strategy(nil), list...)

	minCost, maxCost := bounds(ranked, func(s Strategy) float64 { return s.CostEstimate })
	minTime, maxTime := bounds(ranked, func(s Strategy) float64 { return s.TimeEstimate })

	score := func(s Strategy) float64 {
		switch goal {
		case GoalCost:
			return -s.CostEstimate
		case GoalSpeed:
			return -s.TimeEstimate
		default:
			return 0.5*s.Priority - 0.25*normalize(s.CostEstimate, minCost, maxCost) - 0.25*normalize(s.TimeEstimate, minTime, maxTime)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := score(ranked[i]), score(ranked[j])
		if si != sj {
			return si > sj
		}
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

func bounds(list []Strategy, field func(Strategy) float64) (float64, float64) {
	if len(list) == 0 {
		return 0, 0
	}
	min, max := field(list[0]), field(list[0])
	for _, s := range list[1:] {
		v := field(s)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func normalize(v, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (v - min) / (max - min)
}

// RecordOutcome updates the observed success/failure counts for name.
func (e *Explorer) RecordOutcome(name string, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if success {
		e.successCount[name]++
	} else {
		e.failureCount[name]++
	}
}

// SuccessRate returns succ/(succ+fail), or 0.5 if name has never been
// recorded.
func (e *Explorer) SuccessRate(name string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	succ, fail := e.successCount[name], e.failureCount[name]
	if succ+fail == 0 {
		return 0.5
	}
	return float64(succ) / float64(succ+fail)
}

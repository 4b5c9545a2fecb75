package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateStrategies_OmitsPrimary(t *testing.T) {
	e := NewExplorer()
	primary := "direct"
	strategies := e.EnumerateStrategies("http_request", &primary)

	require.NotEmpty(t, strategies)
	for _, s := range strategies {
		assert.NotEqual(t, "direct", s.Name)
	}
}

func TestEnumerateStrategies_UnknownKind(t *testing.T) {
	e := NewExplorer()
	assert.Nil(t, e.EnumerateStrategies("nonexistent_kind", nil))
}

func TestRankStrategies_CostGoalOrdersCheapestFirst(t *testing.T) {
	list := []Strategy{
		{Name: "expensive", Priority: 1.0, CostEstimate: 5.0, TimeEstimate: 1.0},
		{Name: "cheap", Priority: 1.0, CostEstimate: 0.1, TimeEstimate: 1.0},
	}
	ranked := RankStrategies(list, GoalCost)
	require.Len(t, ranked, 2)
	assert.Equal(t, "cheap", ranked[0].Name)
}

func TestRankStrategies_SpeedGoalOrdersFastestFirst(t *testing.T) {
	list := []Strategy{
		{Name: "slow", Priority: 1.0, CostEstimate: 1.0, TimeEstimate: 5.0},
		{Name: "fast", Priority: 1.0, CostEstimate: 1.0, TimeEstimate: 0.1},
	}
	ranked := RankStrategies(list, GoalSpeed)
	require.Len(t, ranked, 2)
	assert.Equal(t, "fast", ranked[0].Name)
}

func TestRankStrategies_TiesBreakByPriorityThenName(t *testing.T) {
	list := []Strategy{
		{Name: "b", Priority: 0.5, CostEstimate: 1.0, TimeEstimate: 1.0},
		{Name: "a", Priority: 0.5, CostEstimate: 1.0, TimeEstimate: 1.0},
	}
	ranked := RankStrategies(list, GoalBalanced)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Name)
	assert.Equal(t, "b", ranked[1].Name)
}

func TestRankStrategies_DeterministicOnIdenticalInput(t *testing.T) {
	list := []Strategy{
		{Name: "x", Priority: 0.9, CostEstimate: 1.2, TimeEstimate: 0.8},
		{Name: "y", Priority: 0.4, CostEstimate: 0.3, TimeEstimate: 2.1},
		{Name: "z", Priority: 0.9, CostEstimate: 1.2, TimeEstimate: 0.8},
	}
	first := RankStrategies(list, GoalBalanced)
	second := RankStrategies(list, GoalBalanced)
	assert.Equal(t, first, second)
}

func TestSuccessRate_DefaultsToHalfWhenUnseen(t *testing.T) {
	e := NewExplorer()
	assert.Equal(t, 0.5, e.SuccessRate("never_seen"))
}

func TestSuccessRate_TracksOutcomes(t *testing.T) {
	e := NewExplorer()
	e.RecordOutcome("direct", true)
	e.RecordOutcome("direct", true)
	e.RecordOutcome("direct", false)

	assert.InDelta(t, 2.0/3.0, e.SuccessRate("direct"), 1e-9)
}

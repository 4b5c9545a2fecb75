package evolution

import (
	"context"
	"testing"
	"time"

	"github.com/skillcore/skillcore/internal/failure"
	"github.com/skillcore/skillcore/internal/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMarketplace struct {
	results []SkillMetadata
	err     error
}

func (s stubMarketplace) Search(ctx context.Context, query string, limit int) ([]SkillMetadata, error) {
	return s.results, s.err
}

type stubRegistry struct {
	installed   []string
	unregistered []string
}

func (r *stubRegistry) GetSkill(ctx context.Context, id string) (SkillRecord, error) {
	return SkillRecord{ID: id}, nil
}
func (r *stubRegistry) Install(ctx context.Context, metadata SkillMetadata) error {
	r.installed = append(r.installed, metadata.ID)
	return nil
}
func (r *stubRegistry) Unregister(ctx context.Context, id string) error {
	r.unregistered = append(r.unregistered, id)
	return nil
}
func (r *stubRegistry) SkillsDir() string { return "/tmp/skills" }

func TestEvaluateSkill_ActivatesStrongCandidate(t *testing.T) {
	m := New(Config{SupportedRuntimeVersions: map[string]bool{"1.0": true}}, skills.NewTracker(), stubMarketplace{}, &stubRegistry{}, nil, nil, nil)

	result := m.EvaluateSkill(SkillMetadata{ID: "s1", Readme: "docs", Examples: "ex", RuntimeVersion: "1.0"})
	assert.Equal(t, RecommendationActivate, result.Recommendation)
}

func TestEvaluateSkill_RejectsUnknownRuntime(t *testing.T) {
	m := New(Config{}, skills.NewTracker(), stubMarketplace{}, &stubRegistry{}, nil, nil, nil)

	result := m.EvaluateSkill(SkillMetadata{ID: "s2", RuntimeVersion: "99.0"})
	assert.NotEqual(t, RecommendationActivate, result.Recommendation)
}

func TestRunExploration_InstallsActivatedCandidates(t *testing.T) {
	tracker := skills.NewTracker()
	registry := &stubRegistry{}
	market := stubMarketplace{results: []SkillMetadata{
		{ID: "s1", Readme: "docs", Examples: "ex", RuntimeVersion: "1.0"},
	}}
	m := New(Config{SupportedRuntimeVersions: map[string]bool{"1.0": true}}, tracker, market, registry, nil, nil, nil)

	_, err := m.runExploration(context.Background(), "query")
	require.NoError(t, err)
	assert.Contains(t, registry.installed, "s1")

	stats, ok := tracker.GetSkillStats("s1")
	require.True(t, ok)
	assert.Equal(t, skills.StatusEvaluating, stats.Status)
}

func TestRunPruning_DryRunReturnsWithoutMutating(t *testing.T) {
	tracker := skills.NewTracker()
	for i := 0; i < 5; i++ {
		tracker.RecordExecution("weak_skill", false, time.Second, nil)
	}
	registry := &stubRegistry{}
	m := New(Config{DryRunPrune: true, MinUsesBeforePrune: 5}, tracker, stubMarketplace{}, registry, nil, nil, nil)

	candidates := m.runPruning(context.Background())
	require.NotEmpty(t, candidates)
	assert.Empty(t, registry.unregistered)

	stats, _ := tracker.GetSkillStats("weak_skill")
	assert.NotEqual(t, skills.StatusPruned, stats.Status)
}

func TestRunPruning_LiveRunUnregistersAndSetsStatus(t *testing.T) {
	tracker := skills.NewTracker()
	for i := 0; i < 5; i++ {
		tracker.RecordExecution("weak_skill", false, time.Second, nil)
	}
	registry := &stubRegistry{}
	m := New(Config{MinUsesBeforePrune: 5}, tracker, stubMarketplace{}, registry, nil, nil, nil)

	candidates := m.runPruning(context.Background())
	require.NotEmpty(t, candidates)
	assert.Contains(t, registry.unregistered, "weak_skill")

	stats, _ := tracker.GetSkillStats("weak_skill")
	assert.Equal(t, skills.StatusPruned, stats.Status)
}

func TestTriggerExplorationForFailure_RanksByOverallScore(t *testing.T) {
	market := stubMarketplace{results: []SkillMetadata{
		{ID: "good", Readme: "docs", Examples: "ex", RuntimeVersion: "1.0"},
		{ID: "weak", RuntimeVersion: "99.0"},
	}}
	m := New(Config{SupportedRuntimeVersions: map[string]bool{"1.0": true}}, skills.NewTracker(), market, &stubRegistry{}, nil, nil, nil)

	ranked := m.TriggerExplorationForFailure(context.Background(), "some failure", nil)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "good", ranked[0].ID)
}

func TestStartStop_TerminatesLoopsWithinTimeout(t *testing.T) {
	failures := make(chan failure.Record)
	m := New(Config{ExplorationIntervalHours: 1000, OptimizationIntervalHours: 1000, PruningIntervalHours: 1000}, skills.NewTracker(), stubMarketplace{}, &stubRegistry{}, nil, nil, failures)

	m.Start(context.Background())
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("Stop did not return within expected bound")
	}
}

package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/skillcore/skillcore/internal/evolution"
	"github.com/skillcore/skillcore/internal/skills"
	"github.com/stretchr/testify/assert"
)

type stubMarketplace struct{ results []evolution.SkillMetadata }

func (s stubMarketplace) Search(ctx context.Context, query string, limit int) ([]evolution.SkillMetadata, error) {
	return s.results, nil
}

type stubRegistry struct{}

func (stubRegistry) GetSkill(ctx context.Context, id string) (evolution.SkillRecord, error) {
	return evolution.SkillRecord{ID: id}, nil
}
func (stubRegistry) Install(ctx context.Context, metadata evolution.SkillMetadata) error { return nil }
func (stubRegistry) Unregister(ctx context.Context, id string) error                     { return nil }
func (stubRegistry) SkillsDir() string                                                   { return "/tmp" }

func testDeps() Dependencies {
	tracker := skills.NewTracker()
	tracker.RecordExecution("s1", true, 100*time.Millisecond, nil)

	manager := evolution.New(evolution.Config{}, tracker, stubMarketplace{}, stubRegistry{}, nil, nil, nil)

	var buf bytes.Buffer
	return Dependencies{Tracker: tracker, Manager: manager, Out: &buf}
}

func TestRun_StatusWithNoArgsListsAll(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"status"})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, deps.Out.(*bytes.Buffer).String(), "s1")
}

func TestRun_StatusWithUnknownIDReturnsInvalidInput(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"status", "nope"})
	assert.Equal(t, ExitInvalidInput, code)
}

func TestRun_UnknownSubcommandReturnsInvalidInput(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"bogus"})
	assert.Equal(t, ExitInvalidInput, code)
}

func TestRun_RankRespectsTopFlag(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"rank", "--top", "1"})
	assert.Equal(t, ExitSuccess, code)
}

func TestRun_GapsPrintsNothingWhenEmpty(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"gaps"})
	assert.Equal(t, ExitSuccess, code)
}

func TestRun_ExploreReportsNoRecommendationsWhenMarketplaceEmpty(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"explore"})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, deps.Out.(*bytes.Buffer).String(), "no recommendations")
}

func TestRun_PruneDryRunReturnsSuccess(t *testing.T) {
	deps := testDeps()
	code := Run(context.Background(), deps, []string{"prune", "--dry-run"})
	assert.Equal(t, ExitSuccess, code)
}

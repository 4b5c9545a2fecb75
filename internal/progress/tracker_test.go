package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_GeneratesIDWhenNil(t *testing.T) {
	tr := NewTracker()
	id := tr.Start("fetch", nil)
	assert.NotEmpty(t, id)

	state, ok := tr.GetState(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, state.Status)
	assert.Equal(t, "fetch", state.OperationName)
}

func TestRecordAttempt_AppendsInOrder(t *testing.T) {
	tr := NewTracker()
	id := tr.Start("fetch", nil)

	tr.RecordAttempt(id, "direct", false, errors.New("boom"), 10*time.Millisecond, nil)
	tr.RecordAttempt(id, "retry", true, nil, 20*time.Millisecond, nil)

	history := tr.GetAttemptHistory(id)
	require.Len(t, history, 2)
	assert.Equal(t, "direct", history[0].StrategyName)
	assert.Equal(t, "boom", history[0].Error)
	assert.Equal(t, "retry", history[1].StrategyName)
	assert.True(t, history[1].Success)
}

func TestComplete_SetsTerminalStatus(t *testing.T) {
	tr := NewTracker()
	id := tr.Start("fetch", nil)
	tr.Complete(id, true, map[string]string{"ok": "yes"})

	state, ok := tr.GetState(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, state.Status)
	require.NotNil(t, state.CompletedAt)
}

func TestGetMetrics_AggregatesAttempts(t *testing.T) {
	tr := NewTracker()
	id := tr.Start("fetch", nil)
	tr.RecordAttempt(id, "a", true, nil, 100*time.Millisecond, nil)
	tr.RecordAttempt(id, "b", false, errors.New("x"), 300*time.Millisecond, nil)

	metrics := tr.GetMetrics(id)
	assert.Equal(t, 2, metrics.AttemptCount)
	assert.Equal(t, 1, metrics.SuccessCount)
	assert.Equal(t, 1, metrics.FailureCount)
	assert.Equal(t, 200*time.Millisecond, metrics.AverageDuration)
}

func TestSaveRestoreState_RoundTrips(t *testing.T) {
	tr := NewTracker()
	id := tr.Start("fetch", nil)
	tr.RecordAttempt(id, "a", true, nil, 50*time.Millisecond, map[string]interface{}{"k": "v"})
	tr.Complete(id, true, "done")

	data, err := tr.SaveState(id)
	require.NoError(t, err)

	tr2 := NewTracker()
	restoredID, err := tr2.RestoreState(data)
	require.NoError(t, err)
	require.Equal(t, id, restoredID)

	original, _ := tr.GetState(id)
	restored, _ := tr2.GetState(restoredID)
	assert.Equal(t, original, restored)
}

func TestClearCompleted_RemovesOnlyTerminalTasks(t *testing.T) {
	tr := NewTracker()
	running := tr.Start("running_op", nil)
	done := tr.Start("done_op", nil)
	tr.Complete(done, true, nil)

	tr.ClearCompleted()

	_, stillThere := tr.GetState(running)
	_, gone := tr.GetState(done)
	assert.True(t, stillThere)
	assert.False(t, gone)
}

func TestClearAll_RemovesEverything(t *testing.T) {
	tr := NewTracker()
	tr.Start("a", nil)
	tr.Start("b", nil)
	tr.ClearAll()

	assert.Empty(t, tr.tasks)
}

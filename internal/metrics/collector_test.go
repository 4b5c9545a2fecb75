package metrics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounter_AccumulatesAndDefaultsToOne(t *testing.T) {
	c := NewCollector(nil)
	c.RecordCounter("requests", 0, nil)
	c.RecordCounter("requests", 2, nil)

	summary := c.GetSummary()
	assert.Equal(t, 3.0, summary.Counters["requests"])
}

func TestRecordGauge_KeepsLatestValue(t *testing.T) {
	c := NewCollector(nil)
	c.RecordGauge("cpu_percent", 10, nil)
	c.RecordGauge("cpu_percent", 55, nil)

	summary := c.GetSummary()
	assert.Equal(t, 55.0, summary.Gauges["cpu_percent"])
}

func TestRecordTimer_TracksMinMaxMean(t *testing.T) {
	c := NewCollector(nil)
	c.RecordTimer("task.duration", 100*time.Millisecond, nil)
	c.RecordTimer("task.duration", 300*time.Millisecond, nil)

	summary := c.GetSummary()
	timer := summary.Timers["task.duration"]
	assert.Equal(t, int64(2), timer.Count)
	assert.InDelta(t, 0.1, timer.Min, 0.001)
	assert.InDelta(t, 0.3, timer.Max, 0.001)
	assert.InDelta(t, 0.2, timer.Mean, 0.001)
}

func TestStartTimer_RecordsElapsedOnCall(t *testing.T) {
	c := NewCollector(nil)
	stop := c.StartTimer("op", nil)
	time.Sleep(5 * time.Millisecond)
	stop()

	summary := c.GetSummary()
	assert.Equal(t, int64(1), summary.Timers["op"].Count)
	assert.Greater(t, summary.Timers["op"].Total, 0.0)
}

type recordingArchiver struct {
	keys [][]byte
}

func (r *recordingArchiver) PutJSON(ctx context.Context, key string, data []byte) error {
	r.keys = append(r.keys, data)
	return nil
}

func TestSaveMetrics_WritesFileAndMirrorsToArchiver(t *testing.T) {
	archiver := &recordingArchiver{}
	c := NewCollector(archiver)
	c.RecordCounter("requests", 1, nil)

	path := filepath.Join(t.TempDir(), "metrics_20260730_000000.json")
	err := c.SaveMetrics(context.Background(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, 1.0, env.Summary.Counters["requests"])
	assert.Len(t, archiver.keys, 1)
}

func TestGetSummary_ReturnsSnapshotNotLiveView(t *testing.T) {
	c := NewCollector(nil)
	c.RecordCounter("a", 1, nil)
	summary := c.GetSummary()

	c.RecordCounter("a", 5, nil)
	assert.Equal(t, 1.0, summary.Counters["a"])
}

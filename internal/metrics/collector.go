// Package metrics implements the resilience core's counter/gauge/timer
// collector and periodic system-resource sampling (C9).
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Kind is the closed set a Metric may carry.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindTimer     Kind = "timer"
	KindHistogram Kind = "histogram"
)

// Metric is a single recorded data point (§3).
type Metric struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type timerStats struct {
	Count int64
	Min   float64
	Max   float64
	Total float64
}

func (t timerStats) Mean() float64 {
	if t.Count == 0 {
		return 0
	}
	return t.Total / float64(t.Count)
}

// TimerSummary is the rendered view of an accumulated timer.
type TimerSummary struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Total float64 `json:"total"`
}

// Summary is what GetSummary returns: a point-in-time snapshot, not a live
// view, so callers never observe a partially updated map.
type Summary struct {
	Counters map[string]float64      `json:"counters"`
	Gauges   map[string]float64      `json:"gauges"`
	Timers   map[string]TimerSummary `json:"timers"`
}

// Collector accumulates counters, gauges, and timers in memory. Recording
// takes a single mutex and does no I/O; reads
// via GetSummary may reflect a snapshot slightly stale vs. in-flight writes,
// per the concurrency model's metrics guarantee.
type Collector struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	timers   map[string]timerStats
	history  []Metric

	s3 Archiver
}

// Archiver optionally mirrors metrics snapshots to an object store. Nil
// means local filesystem only.
type Archiver interface {
	PutJSON(ctx context.Context, key string, data []byte) error
}

// NewCollector creates an empty collector. An Archiver may be nil.
func NewCollector(archiver Archiver) *Collector {
	return &Collector{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
		timers:   make(map[string]timerStats),
		s3:       archiver,
	}
}

func tagKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	return fmt.Sprintf("%s%v", name, tags)
}

// RecordCounter increments a named counter. v defaults to 1 when zero.
func (c *Collector) RecordCounter(name string, v float64, tags map[string]string) {
	if v == 0 {
		v = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tagKey(name, tags)
	c.counters[key] += v
	c.history = append(c.history, Metric{Name: name, Value: v, Kind: KindCounter, Timestamp: time.Now(), Tags: tags})
}

// RecordGauge sets a named gauge to the latest observed value.
func (c *Collector) RecordGauge(name string, v float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tagKey(name, tags)
	c.gauges[key] = v
	c.history = append(c.history, Metric{Name: name, Value: v, Kind: KindGauge, Timestamp: time.Now(), Tags: tags})
}

// RecordTimer accumulates a duration sample into a named timer's stats.
func (c *Collector) RecordTimer(name string, dur time.Duration, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tagKey(name, tags)
	seconds := dur.Seconds()
	stats, ok := c.timers[key]
	if !ok {
		stats = timerStats{Min: math.MaxFloat64}
	}
	stats.Count++
	stats.Total += seconds
	if seconds < stats.Min {
		stats.Min = seconds
	}
	if seconds > stats.Max {
		stats.Max = seconds
	}
	c.timers[key] = stats
	c.history = append(c.history, Metric{Name: name, Value: seconds, Kind: KindTimer, Timestamp: time.Now(), Tags: tags})
}

// StartTimer returns a function that, when called, records the elapsed
// duration since acquisition: `defer collector.StartTimer(name, tags)()`.
func (c *Collector) StartTimer(name string, tags map[string]string) func() {
	start := time.Now()
	return func() {
		c.RecordTimer(name, time.Since(start), tags)
	}
}

// CollectSystemMetrics samples process-host CPU and memory utilization as
// gauges. It is intended to be called on a periodic schedule by the host.
func (c *Collector) CollectSystemMetrics(ctx context.Context) error {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("sample cpu: %w", err)
	}
	if len(percentages) > 0 {
		c.RecordGauge("cpu_percent", percentages[0], nil)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("sample memory: %w", err)
	}
	c.RecordGauge("memory_percent", vm.UsedPercent, nil)
	return nil
}

// GetSummary renders the current snapshot.
func (c *Collector) GetSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := Summary{
		Counters: make(map[string]float64, len(c.counters)),
		Gauges:   make(map[string]float64, len(c.gauges)),
		Timers:   make(map[string]TimerSummary, len(c.timers)),
	}
	for k, v := range c.counters {
		summary.Counters[k] = v
	}
	for k, v := range c.gauges {
		summary.Gauges[k] = v
	}
	for k, v := range c.timers {
		summary.Timers[k] = TimerSummary{Count: v.Count, Min: v.Min, Max: v.Max, Mean: v.Mean(), Total: v.Total}
	}
	return summary
}

type envelope struct {
	Summary Summary  `json:"summary"`
	Metrics []Metric `json:"metrics"`
}

// SaveMetrics writes a stable JSON envelope to path, and mirrors it to the
// configured Archiver when present.
func (c *Collector) SaveMetrics(ctx context.Context, path string) error {
	c.mu.Lock()
	env := envelope{Summary: c.snapshotLocked(), Metrics: append([]Metric(nil), c.history...)}
	c.mu.Unlock()

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}

	if c.s3 != nil {
		if err := c.s3.PutJSON(ctx, filepath.Base(path), data); err != nil {
			return fmt.Errorf("archive metrics to s3: %w", err)
		}
	}
	return nil
}

func (c *Collector) snapshotLocked() Summary {
	summary := Summary{
		Counters: make(map[string]float64, len(c.counters)),
		Gauges:   make(map[string]float64, len(c.gauges)),
		Timers:   make(map[string]TimerSummary, len(c.timers)),
	}
	for k, v := range c.counters {
		summary.Counters[k] = v
	}
	for k, v := range c.gauges {
		summary.Gauges[k] = v
	}
	for k, v := range c.timers {
		summary.Timers[k] = TimerSummary{Count: v.Count, Min: v.Min, Max: v.Max, Mean: v.Mean(), Total: v.Total}
	}
	return summary
}

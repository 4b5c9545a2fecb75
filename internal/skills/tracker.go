package skills

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type execution struct {
	at       time.Time
	success  bool
	duration time.Duration
	cost     *float64
}

type skillRecord struct {
	metrics    Metrics
	executions []execution
}

// Tracker maintains rolling performance statistics and accumulated capability
// gaps across all known skills.
type Tracker struct {
	mu     sync.RWMutex
	skills map[string]*skillRecord
	gaps   map[string]*Gap // keyed by missing_capability for simple clustering
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		skills: make(map[string]*skillRecord),
		gaps:   make(map[string]*Gap),
	}
}

// RecordExecution logs one outcome for skillID and recomputes its derived
// scores. cost is currently retained for future cost-weighted reporting but
// does not enter the overall-score formula.
func (t *Tracker) RecordExecution(skillID string, success bool, duration time.Duration, cost *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.skills[skillID]
	if !ok {
		rec = &skillRecord{metrics: Metrics{SkillID: skillID, Status: StatusDiscovered}}
		t.skills[skillID] = rec
	}

	now := time.Now()
	rec.executions = append(rec.executions, execution{at: now, success: success, duration: duration, cost: cost})

	m := &rec.metrics
	m.TotalUses++
	if success {
		m.SuccessfulUses++
	} else {
		m.FailedUses++
	}
	m.TotalExecTime += duration.Seconds()
	if m.FirstUsed == nil {
		m.FirstUsed = &now
	}
	m.LastUsed = &now

	recomputeScores(m, rec.executions)
}

func recomputeScores(m *Metrics, executions []execution) {
	if m.TotalUses > 0 {
		m.SuccessRate = float64(m.SuccessfulUses) / float64(m.TotalUses)
		m.AvgExecTime = m.TotalExecTime / float64(m.TotalUses)
	}

	daysSinceFirstUsed := 1.0
	if m.FirstUsed != nil {
		elapsed := time.Since(*m.FirstUsed).Hours() / 24.0
		if elapsed > 1.0 {
			daysSinceFirstUsed = elapsed
		}
	}
	m.UtilityScore = math.Min(1.0, float64(m.TotalUses)/daysSinceFirstUsed/2.0)
	m.QualityScore = m.SuccessRate
	m.CostScore = math.Max(0, 1.0-m.AvgExecTime/5.0)
	m.OverallScore = 0.4*m.SuccessRate + 0.3*m.UtilityScore + 0.2*m.QualityScore + 0.1*m.CostScore

	m.RecentSuccessRate = recentSuccessRate(executions)
}

// recentSuccessRate computes the success rate over the smaller of: the last
// 50 executions, or the executions within the last 24 hours.
func recentSuccessRate(executions []execution) float64 {
	if len(executions) == 0 {
		return 0
	}

	byCount := executions
	if len(byCount) > 50 {
		byCount = byCount[len(byCount)-50:]
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	var byTime []execution
	for _, e := range executions {
		if e.at.After(cutoff) {
			byTime = append(byTime, e)
		}
	}

	window := byCount
	if len(byTime) < len(byCount) {
		window = byTime
	}
	if len(window) == 0 {
		return 0
	}

	successes := 0
	for _, e := range window {
		if e.success {
			successes++
		}
	}
	return float64(successes) / float64(len(window))
}

// applyStatusTransition implements the RecordSkillUsage transition rule:
// once min_uses_before_prune is reached, oscillate between active and
// underperforming based on overall_score.
func applyStatusTransition(m *Metrics, minUsesBeforePrune int, minOverallScore float64) {
	if m.TotalUses < minUsesBeforePrune {
		return
	}
	if m.OverallScore >= 0.7 {
		m.Status = StatusActive
	} else if m.OverallScore < minOverallScore {
		m.Status = StatusUnderperforming
	}
}

// ApplyStatusTransitions re-evaluates every tracked skill's status against
// the given thresholds. RecordExecution does not apply these transitions;
// statuses change only when this method is called.
func (t *Tracker) ApplyStatusTransitions(minUsesBeforePrune int, minOverallScore float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range t.skills {
		applyStatusTransition(&rec.metrics, minUsesBeforePrune, minOverallScore)
	}
}

// SetStatus directly sets skillID's lifecycle status, creating a bare
// metrics row if the skill is not yet tracked. Used by the evolution
// manager's discovery and evaluation transitions, which happen outside the
// usage-driven RecordExecution threshold rule.
func (t *Tracker) SetStatus(skillID string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.skills[skillID]
	if !ok {
		rec = &skillRecord{metrics: Metrics{SkillID: skillID}}
		t.skills[skillID] = rec
	}
	rec.metrics.Status = status
}

// GetSkillStats returns a copy of id's current metrics.
func (t *Tracker) GetSkillStats(id string) (Metrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.skills[id]
	if !ok {
		return Metrics{}, false
	}
	return rec.metrics, true
}

// GetAllStats returns a snapshot of every tracked skill's metrics, not a
// view onto the live map.
func (t *Tracker) GetAllStats() []Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Metrics, 0, len(t.skills))
	for _, rec := range t.skills {
		out = append(out, rec.metrics)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })
	return out
}

// GetTopPerformers returns up to limit skills ranked by descending overall
// score.
func (t *Tracker) GetTopPerformers(limit int) []Metrics {
	all := t.GetAllStats()
	sort.Slice(all, func(i, j int) bool { return all[i].OverallScore > all[j].OverallScore })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// GetDegradingSkills returns skills whose recent success rate has fallen at
// least 0.15 below their lifetime success rate.
func (t *Tracker) GetDegradingSkills() []Metrics {
	var out []Metrics
	for _, m := range t.GetAllStats() {
		if m.RecentSuccessRate < m.SuccessRate-0.15 {
			out = append(out, m)
		}
	}
	return out
}

// GetImprovingSkills returns skills whose recent success rate exceeds their
// lifetime success rate by at least 0.15.
func (t *Tracker) GetImprovingSkills() []Metrics {
	var out []Metrics
	for _, m := range t.GetAllStats() {
		if m.RecentSuccessRate > m.SuccessRate+0.15 {
			out = append(out, m)
		}
	}
	return out
}

// RecordGap clusters a failed execution's missing capability by exact
// textual match and bumps its failure count and priority.
func (t *Tracker) RecordGap(missingCapability, taskDescription string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(missingCapability))
	if key == "" {
		return
	}
	gap, ok := t.gaps[key]
	if !ok {
		gap = &Gap{GapID: uuid.NewString(), MissingCapability: missingCapability, TaskDescription: taskDescription}
		t.gaps[key] = gap
	}
	gap.FailureCount++
	gap.PriorityScore = math.Tanh(float64(gap.FailureCount) / 5.0)
}

// GetSkillGaps returns gaps with priority_score >= minPriority, ranked
// descending by priority.
func (t *Tracker) GetSkillGaps(minPriority float64) []Gap {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Gap, 0, len(t.gaps))
	for _, g := range t.gaps {
		if g.PriorityScore >= minPriority {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriorityScore > out[j].PriorityScore })
	return out
}

// SaveSnapshot writes every tracked skill's current metrics to path as a
// JSON array, per the persisted-state layout's skill_metrics.json.
// Execution history is not persisted; a restored tracker's recent-window
// scores start fresh on the next RecordExecution.
func (t *Tracker) SaveSnapshot(path string) error {
	all := t.GetAllStats()
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal skill metrics snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create skill metrics snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write skill metrics snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot populates the tracker from a previously saved snapshot. Any
// skill already tracked under the same ID is overwritten.
func (t *Tracker) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read skill metrics snapshot: %w", err)
	}

	var all []Metrics
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("unmarshal skill metrics snapshot: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range all {
		t.skills[m.SkillID] = &skillRecord{metrics: m}
	}
	return nil
}

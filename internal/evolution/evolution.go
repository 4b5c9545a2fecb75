// Package evolution implements the Skill Evolution Manager (C12): three
// cooperative background loops (exploration, optimization, pruning) that
// discover, evaluate, and retire skills over the tracker maintained by C11.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillcore/skillcore/internal/failure"
	"github.com/skillcore/skillcore/internal/learningstore"
	"github.com/skillcore/skillcore/internal/skills"
	"github.com/skillcore/skillcore/pkg/observability"
)

// SkillMetadata is what the marketplace collaborator returns per candidate.
type SkillMetadata struct {
	ID             string
	Name           string
	Description    string
	Readme         string
	Examples       string
	RuntimeVersion string
	Installs       int
	TopSource      string
}

// SkillRecord is what the registry collaborator returns for an installed
// skill.
type SkillRecord struct {
	ID     string
	Status string
}

// Marketplace is the injected collaborator for discovering candidate
// skills.
type Marketplace interface {
	Search(ctx context.Context, query string, limit int) ([]SkillMetadata, error)
}

// Registry is the injected collaborator for installed-skill lifecycle.
type Registry interface {
	GetSkill(ctx context.Context, id string) (SkillRecord, error)
	Install(ctx context.Context, metadata SkillMetadata) error
	Unregister(ctx context.Context, id string) error
	SkillsDir() string
}

// Recommendation is EvaluateSkill's closed verdict set.
type Recommendation string

const (
	RecommendationActivate Recommendation = "activate"
	RecommendationMonitor  Recommendation = "monitor"
	RecommendationReject   Recommendation = "reject"
)

// EvaluationResult is the scored outcome of evaluating a candidate skill.
type EvaluationResult struct {
	EvaluationID   string
	SkillID        string
	Documentation  float64
	Compatibility  float64
	Quality        float64
	CodeQuality    float64
	Overall        float64
	Recommendation Recommendation
}

// Config parameterizes the three loops and pruning thresholds.
type Config struct {
	ExplorationIntervalHours  float64
	OptimizationIntervalHours float64
	PruningIntervalHours      float64
	MaxSkillsPerExploration   int
	MinUsesBeforePrune        int
	MinSuccessRate            float64
	MinOverallScore           float64
	MaxUnusedDays             int
	MinCompatibilityScore     float64
	DryRunPrune               bool

	SupportedRuntimeVersions map[string]bool
}

func (c Config) withDefaults() Config {
	if c.ExplorationIntervalHours <= 0 {
		c.ExplorationIntervalHours = 6
	}
	if c.OptimizationIntervalHours <= 0 {
		c.OptimizationIntervalHours = 12
	}
	if c.PruningIntervalHours <= 0 {
		c.PruningIntervalHours = 168
	}
	if c.MaxSkillsPerExploration <= 0 {
		c.MaxSkillsPerExploration = 10
	}
	if c.MinUsesBeforePrune <= 0 {
		c.MinUsesBeforePrune = 5
	}
	if c.MinSuccessRate <= 0 {
		c.MinSuccessRate = 0.5
	}
	if c.MinOverallScore <= 0 {
		c.MinOverallScore = 0.4
	}
	if c.MaxUnusedDays <= 0 {
		c.MaxUnusedDays = 30
	}
	if c.MinCompatibilityScore <= 0 {
		c.MinCompatibilityScore = 0.5
	}
	return c
}

// Manager owns the three background loops and the skill metrics map they
// operate on (via the injected Tracker).
type Manager struct {
	config      Config
	tracker     *skills.Tracker
	marketplace Marketplace
	registry    Registry
	store       learningstore.Store
	logger      observability.Logger
	failures    <-chan failure.Record

	evaluations map[string]EvaluationResult
	evalMu      sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires the manager's collaborators.
func New(config Config, tracker *skills.Tracker, marketplace Marketplace, registry Registry, store learningstore.Store, logger observability.Logger, failures <-chan failure.Record) *Manager {
	return &Manager{
		config:      config.withDefaults(),
		tracker:     tracker,
		marketplace: marketplace,
		registry:    registry,
		store:       store,
		logger:      logger,
		failures:    failures,
		evaluations: make(map[string]EvaluationResult),
	}
}

// Start spawns the configured loops as cooperative background goroutines.
func (m *Manager) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.config.ExplorationIntervalHours > 0 {
		m.wg.Add(1)
		go m.explorationLoop(loopCtx)
	}
	if m.config.OptimizationIntervalHours > 0 {
		m.wg.Add(1)
		go m.optimizationLoop(loopCtx)
	}
	if m.config.PruningIntervalHours > 0 {
		m.wg.Add(1)
		go m.pruningLoop(loopCtx)
	}
	if m.failures != nil {
		m.wg.Add(1)
		go m.failureEventLoop(loopCtx)
	}
}

// Stop cancels all loops and waits up to 5s for them to terminate.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		if m.logger != nil {
			m.logger.Warn("evolution manager loops did not terminate within timeout", nil)
		}
	}
}

// explorationRetrySleep bounds a retry backoff to at most half the
// exploration interval, so a failed schedule tick never stalls past the
// next one.
func (m *Manager) explorationRetrySleep() time.Duration {
	bound := time.Duration(m.config.ExplorationIntervalHours / 2 * float64(time.Hour))
	if bound > time.Hour || bound <= 0 {
		bound = time.Hour
	}
	return bound
}

func (m *Manager) explorationLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := time.Duration(m.config.ExplorationIntervalHours * float64(time.Hour))
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := m.runExploration(ctx, "general skill improvements"); err != nil && m.logger != nil {
				m.logger.Warn("exploration tick failed", map[string]interface{}{"error": err.Error()})
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.explorationRetrySleep()):
				}
			}
			timer.Reset(interval)
		}
	}
}

// RunExplorationNow runs one exploration pass synchronously for query,
// bypassing the scheduled interval. Used by the CLI's `skill explore`.
func (m *Manager) RunExplorationNow(ctx context.Context, query string) ([]SkillMetadata, error) {
	return m.runExploration(ctx, query)
}

func (m *Manager) runExploration(ctx context.Context, query string) ([]SkillMetadata, error) {
	candidates, err := m.marketplace.Search(ctx, query, m.config.MaxSkillsPerExploration)
	if err != nil {
		return nil, fmt.Errorf("search marketplace: %w", err)
	}

	var recommended []SkillMetadata
	for _, candidate := range candidates {
		if _, seen := m.tracker.GetSkillStats(candidate.ID); seen {
			continue
		}

		evaluation := m.EvaluateSkill(candidate)
		m.recordEvaluation(evaluation)
		m.tracker.SetStatus(candidate.ID, skills.StatusDiscovered)

		if evaluation.Recommendation == RecommendationActivate {
			m.tracker.SetStatus(candidate.ID, skills.StatusEvaluating)
			if err := m.registry.Install(ctx, candidate); err != nil && m.logger != nil {
				m.logger.Warn("skill install failed", map[string]interface{}{"skill_id": candidate.ID, "error": err.Error()})
				continue
			}
			recommended = append(recommended, candidate)
		}
	}

	for _, gap := range m.tracker.GetSkillGaps(0.3) {
		gapCandidates, err := m.marketplace.Search(ctx, gap.MissingCapability, m.config.MaxSkillsPerExploration)
		if err != nil {
			continue
		}
		recommended = append(recommended, gapCandidates...)
	}

	return recommended, nil
}

// TriggerExplorationForFailure performs an immediate, schedule-bypassing
// exploration for a failure-specific query, returning ranked recommendations
// without installing anything.
func (m *Manager) TriggerExplorationForFailure(ctx context.Context, taskDescription string, err error) []SkillMetadata {
	candidates, searchErr := m.marketplace.Search(ctx, taskDescription, m.config.MaxSkillsPerExploration)
	if searchErr != nil {
		return nil
	}

	ranked := make([]SkillMetadata, 0, len(candidates))
	for _, candidate := range candidates {
		evaluation := m.EvaluateSkill(candidate)
		m.recordEvaluation(evaluation)
		if evaluation.Recommendation != RecommendationReject {
			ranked = append(ranked, candidate)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return m.evaluationFor(ranked[i].ID).Overall > m.evaluationFor(ranked[j].ID).Overall
	})
	return ranked
}

func (m *Manager) failureEventLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-m.failures:
			if !ok {
				return
			}
			m.TriggerExplorationForFailure(ctx, rec.OperationName, errors.New(rec.ErrorMessage))
		}
	}
}

// EvaluateSkill scores a candidate skill per the closed formula set.
func (m *Manager) EvaluateSkill(metadata SkillMetadata) EvaluationResult {
	documentation := 0.0
	if metadata.Readme != "" {
		documentation += 0.5
	}
	if metadata.Examples != "" {
		documentation += 0.5
	}

	compatibility := 0.8
	if metadata.RuntimeVersion != "" {
		if m.config.SupportedRuntimeVersions[metadata.RuntimeVersion] {
			compatibility = 1.0
		} else {
			compatibility = 0.5
		}
	}

	quality := 0.5
	codeQuality := 0.7

	overall := 0.3*quality + 0.3*compatibility + 0.2*documentation + 0.2*codeQuality

	recommendation := RecommendationReject
	switch {
	case overall >= 0.7 && compatibility >= m.config.MinCompatibilityScore:
		recommendation = RecommendationActivate
	case overall >= 0.5:
		recommendation = RecommendationMonitor
	}

	return EvaluationResult{
		EvaluationID:   uuid.NewString(),
		SkillID:        metadata.ID,
		Documentation:  documentation,
		Compatibility:  compatibility,
		Quality:        quality,
		CodeQuality:    codeQuality,
		Overall:        overall,
		Recommendation: recommendation,
	}
}

func (m *Manager) recordEvaluation(e EvaluationResult) {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()
	m.evaluations[e.SkillID] = e
}

func (m *Manager) evaluationFor(skillID string) EvaluationResult {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()
	return m.evaluations[skillID]
}

func (m *Manager) optimizationLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := time.Duration(m.config.OptimizationIntervalHours * float64(time.Hour))
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.runOptimization()
			timer.Reset(interval)
		}
	}
}

func (m *Manager) runOptimization() {
	active := make([]skills.Metrics, 0)
	for _, metric := range m.tracker.GetAllStats() {
		if metric.Status == skills.StatusActive && metric.TotalUses >= m.config.MinUsesBeforePrune {
			active = append(active, metric)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].OverallScore > active[j].OverallScore })

	degrading := m.tracker.GetDegradingSkills()
	improving := m.tracker.GetImprovingSkills()

	if m.logger != nil {
		m.logger.Info("optimization loop tick", map[string]interface{}{
			"active_skills":    len(active),
			"degrading_skills": len(degrading),
			"improving_skills": len(improving),
		})
	}

	// TODO: feed degrading skills' capability categories back into the
	// alternative explorer's strategy-template priorities once a feedback
	// format between C11 and C5 is defined.
}

func (m *Manager) pruningLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := time.Duration(m.config.PruningIntervalHours * float64(time.Hour))
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.runPruning(ctx)
			timer.Reset(interval)
		}
	}
}

// PruneCandidate is a skill flagged for pruning along with the reason.
// Failed is set when the live-run unregister or durable-log write errored;
// dry-run candidates always report Failed = false.
type PruneCandidate struct {
	SkillID string
	Reason  string
	Failed  bool
}

func (m *Manager) pruneCandidates() []PruneCandidate {
	var candidates []PruneCandidate
	now := time.Now()

	for _, metric := range m.tracker.GetAllStats() {
		if metric.TotalUses < m.config.MinUsesBeforePrune {
			continue
		}

		switch {
		case metric.SuccessRate < m.config.MinSuccessRate:
			candidates = append(candidates, PruneCandidate{SkillID: metric.SkillID, Reason: "success_rate below threshold"})
		case metric.OverallScore < m.config.MinOverallScore:
			candidates = append(candidates, PruneCandidate{SkillID: metric.SkillID, Reason: "overall_score below threshold"})
		case metric.LastUsed != nil && now.Sub(*metric.LastUsed) > time.Duration(m.config.MaxUnusedDays)*24*time.Hour:
			candidates = append(candidates, PruneCandidate{SkillID: metric.SkillID, Reason: "unused beyond max_unused_days"})
		}
	}
	return candidates
}

// RunPruningNow runs one pruning pass synchronously, bypassing the
// scheduled interval. Used by the CLI's `skill prune`.
func (m *Manager) RunPruningNow(ctx context.Context) []PruneCandidate {
	return m.runPruning(ctx)
}

func (m *Manager) runPruning(ctx context.Context) []PruneCandidate {
	candidates := m.pruneCandidates()
	if m.config.DryRunPrune {
		return candidates
	}

	for i, c := range candidates {
		m.tracker.SetStatus(c.SkillID, skills.StatusPruned)

		if err := m.registry.Unregister(ctx, c.SkillID); err != nil {
			candidates[i].Failed = true
			if m.logger != nil {
				m.logger.Warn("unregister failed during pruning", map[string]interface{}{"skill_id": c.SkillID, "error": err.Error()})
			}
		}
		if m.store != nil {
			if err := m.store.RecordPruning(ctx, c.SkillID, time.Now(), c.Reason); err != nil {
				candidates[i].Failed = true
				if m.logger != nil {
					m.logger.Warn("record pruning failed", map[string]interface{}{"skill_id": c.SkillID, "error": err.Error()})
				}
			}
		}
	}
	return candidates
}

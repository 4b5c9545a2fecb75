// Package skills holds the skill data model and the Skill Performance
// Tracker (C11): per-skill rolling statistics, trend detection, and gap
// accumulation.
package skills

import "time"

// Status is the closed set a skill's lifecycle can occupy. Transitions are
// monotonic except underperforming and active may oscillate.
type Status string

const (
	StatusDiscovered     Status = "discovered"
	StatusEvaluating     Status = "evaluating"
	StatusActive         Status = "active"
	StatusUnderperforming Status = "underperforming"
	StatusPruned         Status = "pruned"
)

// Metrics is the per-skill rolling statistics record (§3). Score fields are
// recomputed after every RecordExecution.
type Metrics struct {
	SkillID             string     `json:"skill_id"`
	TotalUses           int        `json:"total_uses"`
	SuccessfulUses      int        `json:"successful_uses"`
	FailedUses          int        `json:"failed_uses"`
	TotalExecTime       float64    `json:"total_exec_time"`
	AvgExecTime         float64    `json:"avg_exec_time"`
	FirstUsed           *time.Time `json:"first_used,omitempty"`
	LastUsed            *time.Time `json:"last_used,omitempty"`
	SuccessRate         float64    `json:"success_rate"`
	RecentSuccessRate   float64    `json:"recent_success_rate"`
	UtilityScore        float64    `json:"utility_score"`
	QualityScore        float64    `json:"quality_score"`
	CostScore           float64    `json:"cost_score"`
	OverallScore        float64    `json:"overall_score"`
	Status              Status     `json:"status"`
}

// Gap is a detected missing capability (§3), accumulated from failed
// executions whose failures cluster by a common capability signature.
type Gap struct {
	GapID             string  `json:"gap_id"`
	MissingCapability string  `json:"missing_capability"`
	TaskDescription   string  `json:"task_description"`
	FailureCount      int     `json:"failure_count"`
	PriorityScore     float64 `json:"priority_score"`
}

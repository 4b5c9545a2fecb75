// Package progress implements the Progress Tracker (C7): per-task attempt
// logs, derived metrics, and crash-safe JSON serialization.
package progress

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set a task may be in.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Attempt is one append-only entry in a task's history.
type Attempt struct {
	StrategyName string                 `json:"strategy_name"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Duration     time.Duration          `json:"duration"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// TaskState is the mutable record the tracker maintains per task.
type TaskState struct {
	TaskID        string      `json:"task_id"`
	OperationName string      `json:"operation_name"`
	Status        Status      `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	Attempts      []Attempt   `json:"attempts"`
	Result        interface{} `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// TaskMetrics summarizes a task's attempt history.
type TaskMetrics struct {
	AttemptCount   int           `json:"attempt_count"`
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	TotalDuration  time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
}

type taskEntry struct {
	mu    sync.Mutex
	state TaskState
}

// Tracker holds all in-flight and completed tasks keyed by task ID.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*taskEntry)}
}

// Start begins tracking a task. If id is nil a new UUID is generated.
func (t *Tracker) Start(operation string, id *string) string {
	taskID := uuid.NewString()
	if id != nil && *id != "" {
		taskID = *id
	}

	entry := &taskEntry{
		state: TaskState{
			TaskID:        taskID,
			OperationName: operation,
			Status:        StatusRunning,
			StartedAt:     time.Now(),
			Attempts:      []Attempt{},
		},
	}

	t.mu.Lock()
	t.tasks[taskID] = entry
	t.mu.Unlock()
	return taskID
}

func (t *Tracker) get(id string) (*taskEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.tasks[id]
	return entry, ok
}

// RecordAttempt appends an attempt to id's history. A no-op if id is unknown.
func (t *Tracker) RecordAttempt(id, name string, success bool, err error, duration time.Duration, metadata map[string]interface{}) {
	entry, ok := t.get(id)
	if !ok {
		return
	}
	attempt := Attempt{StrategyName: name, Success: success, Duration: duration, Metadata: metadata}
	if err != nil {
		attempt.Error = err.Error()
	}

	entry.mu.Lock()
	entry.state.Attempts = append(entry.state.Attempts, attempt)
	entry.mu.Unlock()
}

// Complete marks id terminal with the given outcome.
func (t *Tracker) Complete(id string, success bool, result interface{}) {
	entry, ok := t.get(id)
	if !ok {
		return
	}
	now := time.Now()

	entry.mu.Lock()
	entry.state.CompletedAt = &now
	entry.state.Result = result
	if success {
		entry.state.Status = StatusCompleted
	} else {
		entry.state.Status = StatusFailed
	}
	entry.mu.Unlock()
}

// Cancel marks id cancelled.
func (t *Tracker) Cancel(id string) {
	entry, ok := t.get(id)
	if !ok {
		return
	}
	now := time.Now()

	entry.mu.Lock()
	entry.state.CompletedAt = &now
	entry.state.Status = StatusCancelled
	entry.mu.Unlock()
}

// GetState returns a deep copy of id's state.
func (t *Tracker) GetState(id string) (TaskState, bool) {
	entry, ok := t.get(id)
	if !ok {
		return TaskState{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneState(entry.state), true
}

// GetAttemptHistory returns a copy of id's attempt log.
func (t *Tracker) GetAttemptHistory(id string) []Attempt {
	entry, ok := t.get(id)
	if !ok {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return append([]Attempt(nil), entry.state.Attempts...)
}

// GetMetrics derives aggregate attempt statistics for id.
func (t *Tracker) GetMetrics(id string) TaskMetrics {
	entry, ok := t.get(id)
	if !ok {
		return TaskMetrics{}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	var metrics TaskMetrics
	for _, a := range entry.state.Attempts {
		metrics.AttemptCount++
		if a.Success {
			metrics.SuccessCount++
		} else {
			metrics.FailureCount++
		}
		metrics.TotalDuration += a.Duration
	}
	if metrics.AttemptCount > 0 {
		metrics.AverageDuration = metrics.TotalDuration / time.Duration(metrics.AttemptCount)
	}
	return metrics
}

// SaveState serializes id's current state to the stable JSON persistence
// shape.
func (t *Tracker) SaveState(id string) (json.RawMessage, error) {
	entry, ok := t.get(id)
	if !ok {
		return nil, fmt.Errorf("unknown task %s", id)
	}
	entry.mu.Lock()
	state := cloneState(entry.state)
	entry.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal task state: %w", err)
	}
	return data, nil
}

// RestoreState rehydrates a task from SaveState output and installs it in
// the tracker under its original task ID, returning that ID.
func (t *Tracker) RestoreState(data json.RawMessage) (string, error) {
	var state TaskState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", fmt.Errorf("unmarshal task state: %w", err)
	}
	if state.Attempts == nil {
		state.Attempts = []Attempt{}
	}

	t.mu.Lock()
	t.tasks[state.TaskID] = &taskEntry{state: state}
	t.mu.Unlock()
	return state.TaskID, nil
}

// ClearCompleted removes every task whose status is terminal.
func (t *Tracker) ClearCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.tasks {
		entry.mu.Lock()
		terminal := entry.state.Status != StatusRunning
		entry.mu.Unlock()
		if terminal {
			delete(t.tasks, id)
		}
	}
}

// ClearAll removes every tracked task regardless of status.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = make(map[string]*taskEntry)
}

// cloneState copies s with its timestamps in UTC and without a monotonic
// clock reading, so a state compares equal after a JSON round trip.
func cloneState(s TaskState) TaskState {
	clone := s
	clone.StartedAt = s.StartedAt.UTC()
	clone.Attempts = append([]Attempt(nil), s.Attempts...)
	if s.CompletedAt != nil {
		completedAt := s.CompletedAt.UTC()
		clone.CompletedAt = &completedAt
	}
	return clone
}

// Package learningstore persists the durable record of pruning decisions
// the Skill Evolution Manager (C12) makes, independent of the in-memory
// skill metrics map.
package learningstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is the collaborator C12's pruning loop writes to.
type Store interface {
	RecordPruning(ctx context.Context, skillID string, prunedAt time.Time, reason string) error
}

type pruningEntry struct {
	SkillID  string    `json:"skill_id"`
	PrunedAt time.Time `json:"pruned_at"`
	Reason   string    `json:"reason"`
}

// JSONLStore appends one JSON line per pruning event to a file. This is the
// default/fallback store per the persisted-state layout.
type JSONLStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONLStore creates a store appending to path, creating parent
// directories as needed.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create learning store dir: %w", err)
	}
	return &JSONLStore{path: path}, nil
}

// RecordPruning appends one line to the JSONL file.
func (s *JSONLStore) RecordPruning(_ context.Context, skillID string, prunedAt time.Time, reason string) error {
	entry := pruningEntry{SkillID: skillID, PrunedAt: prunedAt, Reason: reason}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal pruning entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open learning store: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append pruning entry: %w", err)
	}
	return nil
}

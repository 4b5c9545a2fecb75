// Package registry implements the Skill Evolution Manager's registry
// collaborator: the on-disk directory of installed skills, each identified
// by skill_id and backed by a small metadata file under its own directory.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/skillcore/skillcore/internal/evolution"
)

// FileRegistry is evolution.Registry backed by a directory tree: one
// subdirectory per installed skill under root, holding a metadata.json.
type FileRegistry struct {
	mu   sync.RWMutex
	root string
}

// NewFileRegistry ensures root exists and returns a registry rooted there.
func NewFileRegistry(root string) (*FileRegistry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create skills dir: %w", err)
	}
	return &FileRegistry{root: root}, nil
}

func (r *FileRegistry) skillDir(id string) string {
	return filepath.Join(r.root, id)
}

// GetSkill reads the installed skill's metadata, reporting its status by the
// directory's mere existence (install/unregister are the only writers).
func (r *FileRegistry) GetSkill(ctx context.Context, id string) (evolution.SkillRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path := filepath.Join(r.skillDir(id), "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return evolution.SkillRecord{}, fmt.Errorf("skill %s not installed", id)
		}
		return evolution.SkillRecord{}, fmt.Errorf("read skill metadata: %w", err)
	}

	var meta evolution.SkillMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return evolution.SkillRecord{}, fmt.Errorf("unmarshal skill metadata: %w", err)
	}
	return evolution.SkillRecord{ID: meta.ID, Status: "installed"}, nil
}

// Install writes metadata for the skill to its own directory.
func (r *FileRegistry) Install(ctx context.Context, metadata evolution.SkillMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.skillDir(metadata.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create skill dir: %w", err)
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal skill metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("write skill metadata: %w", err)
	}
	return nil
}

// Unregister deletes the skill's installed directory and its contents.
func (r *FileRegistry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.RemoveAll(r.skillDir(id)); err != nil {
		return fmt.Errorf("delete skill files for %s: %w", id, err)
	}
	return nil
}

// SkillsDir returns the root directory installed skills live under.
func (r *FileRegistry) SkillsDir() string {
	return r.root
}

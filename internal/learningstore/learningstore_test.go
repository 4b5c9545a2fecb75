package learningstore

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLStore_RecordPruningAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pruned.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.RecordPruning(context.Background(), "skill_a", now, "low success rate"))
	require.NoError(t, store.RecordPruning(context.Background(), "skill_b", now, "unused"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

package daemonlock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_WritesPIDAndSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillcored.pid")
	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestAcquire_FailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillcored.pid")
	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(path)
	assert.Error(t, err)
}

func TestRelease_AllowsReacquisition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillcored.pid")
	first, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := Acquire(path)
	require.NoError(t, err)
	defer second.Release()
}

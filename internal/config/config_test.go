package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("SKILLCORE_CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 3, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.CircuitBreaker.CooldownTimeout)
	assert.Equal(t, 168.0, cfg.Evolution.PruningIntervalHours)
	assert.Equal(t, "./data", cfg.Persistence.DataDir)
	assert.Equal(t, "in_process", cfg.EventBus.Type)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SKILLCORE_CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("SKILLCORE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("SKILLCORE_EVENT_BUS_TYPE", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "redis", cfg.EventBus.Type)
}

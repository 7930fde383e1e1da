package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raytchel123/raytchel/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Sync.PageLimit)
	assert.InDelta(t, 0.7, cfg.Guardrail.DefaultThreshold, 1e-9)
	assert.InDelta(t, 0.8, cfg.Guardrail.Thresholds["pricing"], 1e-9)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RAYTCHEL_LISTEN", ":9999")
	t.Setenv("RAYTCHEL_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
}

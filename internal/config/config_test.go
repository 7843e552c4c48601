package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Engine config
	assert.Equal(t, "lua", cfg.Engine.Interpreter)
	assert.Equal(t, []string{"-i"}, cfg.Engine.Args)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.PollInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Engine.ChunkWait)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.QuietWindow)
	assert.Equal(t, 2*time.Second, cfg.Engine.GracefulStop)
	assert.Equal(t, 1024, cfg.Engine.ReadBufferSize)

	// Server config
	assert.Equal(t, "8077", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Env config
	assert.Equal(t, "standard", cfg.Env.Profile)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "lua", cfg.Engine.Interpreter)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LUA_INTERPRETER", "luajit")
	t.Setenv("ENGINE_QUIET_WINDOW", "500ms")
	t.Setenv("ENV_PROFILE", "development")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_RPS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "luajit", cfg.Engine.Interpreter)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.QuietWindow)
	assert.Equal(t, "development", cfg.Env.Profile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
}

package canvaspad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunCommand(t *testing.T) {
	cmd, config, err := Parse([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.Equal(t, "8080", config.ServerPort)
	assert.False(t, config.MemoryStore)
	assert.Contains(t, config.PostgresDSN, ":5432/")
}

func TestParseMigrateCommand(t *testing.T) {
	cmd, _, err := Parse([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", cmd.Name())
}

func TestParseFlags(t *testing.T) {
	cmd, config, err := Parse([]string{
		"-port=9000",
		"-memory",
		"-flush-debounce=500ms",
		"-evict-grace=1m",
		"run",
	})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.Equal(t, "9000", config.ServerPort)
	assert.True(t, config.MemoryStore)
	assert.Equal(t, 500*time.Millisecond, config.FlushDebounce)
	assert.Equal(t, time.Minute, config.EvictGrace)
}

func TestParsePostgresPortFlag(t *testing.T) {
	_, config, err := Parse([]string{"-postgres-port=5438", "migrate"})
	require.NoError(t, err)
	assert.Contains(t, config.PostgresDSN, ":5438/")
}

func TestParseEnvOverridesDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://elsewhere:5999/db")
	_, config, err := Parse([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://elsewhere:5999/db", config.PostgresDSN)
}

func TestParseRequiresSubcommand(t *testing.T) {
	_, _, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcommand required")
}

func TestParseRejectsUnknownCommand(t *testing.T) {
	_, _, err := Parse([]string{"serve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

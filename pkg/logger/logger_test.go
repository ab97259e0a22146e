package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New().FromBuffer(&buf).Make()
	require.NoError(t, err)

	log.Info("page hydrated", "page", "p1", "components", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "page hydrated", entry["message"])
	assert.Equal(t, "p1", entry["page"])
	assert.Equal(t, 3.0, entry["components"])
	assert.Contains(t, entry, "time")
}

func TestLoggerSkipsMalformedPairs(t *testing.T) {
	var buf bytes.Buffer
	log, err := New().FromBuffer(&buf).Make()
	require.NoError(t, err)

	// Non-string key and a dangling value must not panic or corrupt output.
	log.Warn("odd args", 42, "x", "dangling")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "odd args", entry["message"])
}

func TestLoggerFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvaspad.log")
	log, err := New().FromPath(path).Make()
	require.NoError(t, err)
	defer log.LogFile.Close()

	log.Error("flush failed", "error", "boom")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flush failed")
	assert.Contains(t, string(data), "boom")
}

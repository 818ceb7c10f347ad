package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "ptags.log")

		logger, err := NewLogger(path, LevelDebug, FormatJSON)
		require.NoError(t, err)
		defer logger.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, FormatText)
		require.NoError(t, err)
		assert.Nil(t, logger.file)
		assert.NoError(t, logger.Close())
	})
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn, FormatJSON)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message", "chunk", 1)
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "warn message", entry["msg"])
	assert.EqualValues(t, 1, entry["chunk"])
}

func TestChildLoggersCarryAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug, FormatJSON).WithRun("run-1").WithPhase("dispatch").WithChunk(3)

	logger.Info("tagger finished", "files", 12)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "dispatch", entry["phase"])
	assert.EqualValues(t, 3, entry["chunk"])
	assert.EqualValues(t, 12, entry["files"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	logger := New(&bytes.Buffer{}, "chatty", FormatText)
	assert.False(t, logger.Enabled(LevelDebug))
	assert.True(t, logger.Enabled(LevelInfo))
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo, "").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	assert.NoError(t, logger.Close())
}

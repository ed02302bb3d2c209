package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/logger"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("debug", "json", &buf)
	l.Debug("hello", "k", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "DEBUG", line["level"])
}

func TestInvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("loud", "text", &buf)
	assert.Contains(t, buf.String(), "invalid log level")
	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	lvl, ok := logger.ParseLevel("WARN")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, lvl)
	_, ok = logger.ParseLevel("nope")
	assert.False(t, ok)
}

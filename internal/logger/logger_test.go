package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAddsFieldsToEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(LogConfig{Level: "INFO", Format: "json"}, &buf)
	require.NoError(t, err)

	pass := l.With("run_id", "abc")
	pass.Info(context.Background(), "pass started", "symbols", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "pass started", rec["msg"])
	assert.Equal(t, "abc", rec["run_id"])
	assert.EqualValues(t, 3, rec["symbols"])
}

func TestDebugRequiresDetailedLogging(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(LogConfig{Level: "DEBUG", Format: "text"}, &buf)
	require.NoError(t, err)

	l.Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	l, err = newLogger(LogConfig{Level: "INFO", Format: "text", DetailedLogging: true}, &buf)
	require.NoError(t, err)
	l.Debug(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "logger_test.go")
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyst.log")
	var buf bytes.Buffer
	l, err := newLogger(LogConfig{Level: "INFO", Format: "json", File: path}, &buf)
	require.NoError(t, err)

	l.With("symbol", "BTCUSDT").ErrorWithErr(context.Background(), "fetch failed", errors.New("boom"))
	require.NoError(t, l.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "fetch failed", rec["msg"])
	assert.Equal(t, "BTCUSDT", rec["symbol"])
	assert.Equal(t, "boom", rec["error"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}

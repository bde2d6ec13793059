package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToDestination(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("subsystem started", "subsystem", "store")
	logger.Debug("hidden at info level")

	out := buf.String()
	assert.Contains(t, out, "subsystem started")
	assert.Contains(t, out, "store")
	assert.NotContains(t, out, "hidden at info level")
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, OutputJSONOption(), LevelOption(zerolog.DebugLevel))

	logger.With("module", "supervisor").Debug("outcome", "status", "completed")

	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "{"), "expected JSON output, got %q", line)
	assert.Contains(t, line, `"module":"supervisor"`)
	assert.Contains(t, line, `"status":"completed"`)
}

func TestParseLevelOption(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{"error", "error"},
		{"bogus", "info"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			cfg := &Config{}
			ParseLevelOption(tc.in)(cfg)
			assert.Equal(t, tc.want, cfg.Level.String())
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotNil(t, logger)

	// These should not panic
	logger.Info("test info")
	logger.Debug("test debug")
	logger.Warn("test warn")
	logger.Error("test error")
	assert.NotNil(t, logger.With("k", "v").Impl())
}

func TestTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	assert.NotNil(t, logger)
	logger.Info("test info", "key", "value")
}

func TestSetupLoggingTrace(t *testing.T) {
	t.Cleanup(func() { SetupLogging("rollnode") })

	for _, trace := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "rollnode.log")
		logger := SetupLogging("tracetest", FileOption(path), TraceOption(trace))

		logger.Info("started")
		logger.Error("store closed", "error", "boom")

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		out := string(raw)
		assert.Contains(t, out, "store closed")
		if trace {
			assert.Contains(t, out, "TestSetupLoggingTrace", "error logs carry a stack trace")
		} else {
			assert.NotContains(t, out, "TestSetupLoggingTrace")
		}
	}
}

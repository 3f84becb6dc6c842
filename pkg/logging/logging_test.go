package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.SlogLevel())
	}
}

func TestInitForCLI_WritesAtOrAboveConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Debug("Test", "this debug line should be suppressed")
	assert.Empty(t, buf.String())

	Info("Test", "hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), "subsystem=Test")
}

func TestError_IncludesWrappedErrorText(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	Error("Component", errors.New("start failed"), "lifecycle callback failed")

	out := buf.String()
	assert.True(t, strings.Contains(out, "lifecycle callback failed"))
	assert.True(t, strings.Contains(out, "start failed"))
}

func TestDebug_SuppressedLinesAllocateNoOutput(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelError, &buf)

	Debug("Test", "debug")
	Info("Test", "info")
	Warn("Test", "warn")
	assert.Empty(t, buf.String())

	Error("Test", nil, "error")
	assert.NotEmpty(t, buf.String())
}

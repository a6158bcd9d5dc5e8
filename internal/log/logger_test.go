package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/xdpwalk/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", "fatal", ""} {
		_, err := parseLevel(input)
		assert.Error(t, err, "parseLevel(%q)", input)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, c, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer c.Close()

	logger.Info("hidden")
	logger.Warn("lane queue full", "lane", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "lane queue full", rec["msg"])
	assert.Equal(t, float64(3), rec["lane"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, c, err := New(config.LogConfig{Level: "debug", Format: "text"}, &buf)
	require.NoError(t, err)
	defer c.Close()

	logger.Debug("walked", "proto", "udp")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "proto=udp")
}

func TestNewWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := config.LogConfig{
		Level:  "info",
		Format: "text",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{
				Enabled: true,
				Path:    logPath,
				Rotation: config.RotationConfig{
					MaxSizeMB:  10,
					MaxBackups: 3,
					MaxAgeDays: 7,
				},
			},
		},
	}

	var console bytes.Buffer
	logger, c, err := New(cfg, &console)
	require.NoError(t, err)
	defer c.Close()
	logger.Info("test message", "key", "value")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test message")
	assert.Contains(t, console.String(), "test message")
}

func TestNewErrors(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "invalid", Format: "json"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid log level")

	_, _, err = New(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unsupported log format")

	_, _, err = New(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{Enabled: true}},
	}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "requires 'path'")

	_, _, err = New(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: config.LogOutputsConfig{Loki: config.LokiOutputConfig{Enabled: true}},
	}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "requires 'endpoint'")
}

func TestInitSetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, Init(config.LogConfig{Level: "error", Format: "json"}))
	t.Cleanup(func() { Close() })
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}

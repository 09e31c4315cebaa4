// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/ragchat-tui/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragchat.log")
	logger, closeFn, err := New(Options{Level: "info", Path: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("HIDDEN")
	logger.Info("RECONNECT_SCHEDULED", zap.Int("attempt", 2))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "RECONNECT_SCHEDULED", rec["message"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, float64(2), rec["attempt"])
	assert.Contains(t, rec, "timestamp")
}

func TestNew_ConsoleGetsWarningsOnly(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "ragchat.log")
	logger, closeFn, err := New(Options{Level: "debug", Path: path, Console: &console})
	require.NoError(t, err)

	logger.Info("QUIET")
	logger.Warn("LOUD")
	require.NoError(t, closeFn())

	assert.NotContains(t, console.String(), "QUIET")
	assert.Contains(t, console.String(), "LOUD")
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(Options{Level: "info"})
	assert.Error(t, err)
	_, _, err = New(Options{Level: "nope", Path: filepath.Join(t.TempDir(), "x.log")})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.HomeEnv, dir)
	cfg := config.Default()
	cfg.Logging.Level = "warn"

	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "warn", opts.Level)
	assert.Equal(t, filepath.Join(dir, "logs", "ragchat.log"), opts.Path)
	assert.Equal(t, 10, opts.MaxSizeMB)
	assert.True(t, opts.Compress)
}

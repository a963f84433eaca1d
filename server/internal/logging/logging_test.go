package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagewatch/pagewatch/server/internal/config"
)

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NotNil(t, logger)

	logger.Info("file changed", "path", "Pages/Index.cshtml")
	assert.Contains(t, buf.String(), `"msg":"file changed"`)
	assert.Contains(t, buf.String(), `"path":"Pages/Index.cshtml"`)
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter(config.LogConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestSetup_SetsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter(config.LogConfig{Level: "info", Format: "text"}, &buf)
	assert.Equal(t, logger.Handler(), slog.Default().Handler())
}

func TestSetup_InfoLevelHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter(config.LogConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("debug-hidden")
	logger.Warn("warn-shown")

	assert.NotContains(t, buf.String(), "debug-hidden")
	assert.Contains(t, buf.String(), "warn-shown")
}

func TestSetup_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagewatch.log")
	logger, closer := Setup(config.LogConfig{
		Level:     "info",
		Format:    "json",
		File:      path,
		MaxSizeMB: 1,
	})
	logger.Info("to-file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to-file")
}

func TestSetup_WithoutFileCloserIsNoop(t *testing.T) {
	_, closer := Setup(config.LogConfig{Level: "error", Format: "json"})
	assert.NoError(t, closer.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("model created", "name", "books")
	assert.Empty(t, buf.String())

	logger.Warn("publish failed", "topic", "modelbase.model.created")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="publish failed"`)
	assert.Contains(t, buf.String(), "topic=modelbase.model.created")
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "modelbase.log")
	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Compress = false

	cleanup, err := Setup(cfg)
	require.NoError(t, err)

	slog.Info("document created", "model", "books", "id", "doc-1")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg="document created"`)
	assert.Contains(t, string(data), "model=books")
}

func TestSetup_Stderr(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cleanup, err := Setup(Config{Level: "debug"})
	require.NoError(t, err)
	assert.NoError(t, cleanup())
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelDebug))
}

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafaelmorch/platform-sports/internal/config"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel(" warn "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestReleaseModeWritesRotatingFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	path := filepath.Join(t.TempDir(), "service.log")
	logger := Init(config.ModeRelease, config.Log{FilePath: path, Level: "info", MaxSize: 1})
	New("attendance").Info("attendance confirmed", "activity_id", "a-1")
	logger.Debug("filtered out")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"module":"attendance"`)
	require.Contains(t, string(data), `"activity_id":"a-1"`)
	require.NotContains(t, string(data), "filtered out")
}

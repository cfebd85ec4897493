// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rafaelmorch/platform-sports/internal/config"
)

const appName = "sports-scheduling"

var (
	mu       sync.Mutex
	instance *slog.Logger
)

// Init configures the global logger. In release mode with a file path the output is JSON written
// through a rotating file; otherwise text goes to stdout.
func Init(mode config.Mode, cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: mode == config.ModeRelease,
		Level:     parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if mode == config.ModeRelease && cfg.FilePath != "" {
		handler = slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("app_name", appName, "env", string(mode))

	mu.Lock()
	instance = logger
	mu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// Get returns the configured logger, or slog.Default when Init has not run.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		return slog.Default()
	}
	return instance
}

// New returns a logger tagged with the module name.
func New(module string) *slog.Logger {
	return Get().With("module", module)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

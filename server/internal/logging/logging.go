// Package logging builds the process-wide [log/slog] logger from the log
// section of the server configuration.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pagewatch/pagewatch/server/internal/config"
)

// Setup creates a logger writing to stdout, plus a rotated file when
// cfg.File is set, and installs it via slog.SetDefault. The returned closer
// releases the log file; it is a no-op when no file is configured.
func Setup(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotated := RotatingFile(cfg)
		w = io.MultiWriter(os.Stdout, rotated)
		closer = rotated
	}
	return SetupWithWriter(cfg, w), closer
}

// SetupWithWriter creates a logger configured according to cfg, writing to
// w, and installs it via slog.SetDefault. Use this variant in tests.
func SetupWithWriter(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// RotatingFile returns a size-rotated writer for cfg.File.
func RotatingFile(cfg config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// ParseLevel converts a config log level to slog.Level. Unknown values map
// to info.
func ParseLevel(level string) slog.Level {
	switch level {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

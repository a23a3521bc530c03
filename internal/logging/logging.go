package logging

import (
	"io"
	"log/slog"
	"os"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values yield def.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return def
	}
}

// Init installs a text logger on stderr as the default logger. level is used
// when LOG_LEVEL is unset; def applies when neither parses.
func Init(level string, def slog.Level) *slog.Logger {
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok && level == "" {
		level = l
	}
	return InitWriter(os.Stderr, ParseLevel(level, def))
}

// InitWriter installs a text logger writing to w at level.
func InitWriter(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

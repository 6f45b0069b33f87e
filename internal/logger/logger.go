package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phed-ledger/internal/config"
)

// ParseLevel maps a config level to slog, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process JSON logger on stdout, tagged with the service name and env
func NewLogger(cfg *config.Config) *slog.Logger {
	return New(os.Stdout, cfg)
}

// New builds a JSON logger writing to w
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})

	l := slog.New(handler)
	if cfg.Application.Name != "" {
		l = l.With("service", cfg.Application.Name)
	}
	if cfg.Application.Env != "" {
		l = l.With("env", cfg.Application.Env)
	}
	l.Debug("logger initialized", "level", level)
	return l
}

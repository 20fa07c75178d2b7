package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a text slog.Logger writing to stderr and, when file is set, to
// a size-rotated log file as well. stdout is left to command output. If the
// log directory cannot be created, logging continues on stderr only.
func New(level, file string) *slog.Logger {
	var w io.Writer = os.Stderr
	var fileErr error
	if file = strings.TrimSpace(file); file != "" {
		if fileErr = os.MkdirAll(filepath.Dir(file), 0o755); fileErr == nil {
			w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    20, // megabytes
				MaxBackups: 5,
				MaxAge:     14, // days
				Compress:   true,
			})
		}
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: LevelFromString(level),
	})
	l := slog.New(handler)
	if fileErr != nil {
		l.Warn("logging: log file disabled", "file", file, "error", fileErr)
	}
	return l
}

// LevelFromString maps a config string to a slog level. Unknown values
// fall back to debug.
func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

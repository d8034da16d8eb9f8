package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	once    sync.Once
	current atomic.Pointer[slog.Logger]
)

// Setup initializes the global logger writing to stdout.
// Level defaults to INFO when invalid; format is "json" (default) or "text".
func Setup(level, format string) {
	SetupTo(os.Stdout, level, format)
}

// SetupTo is Setup with an explicit writer. CLI tools log to stderr so
// stdout carries only command output. Only the first call takes effect.
func SetupTo(w io.Writer, level, format string) {
	once.Do(func() {
		l := newLogger(w, level, format)
		current.Store(l)
		slog.SetDefault(l)
	})
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a slog level, falling back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, setting up an INFO JSON logger on
// stdout if Setup hasn't been called.
func Get() *slog.Logger {
	Setup("INFO", "json")
	return current.Load()
}

// WithComponent returns the global logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithRequest returns l, or the global logger when l is nil, with the
// request_id field set.
func WithRequest(l *slog.Logger, id string) *slog.Logger {
	if l == nil {
		l = Get()
	}
	return l.With(slog.String("request_id", id))
}

// WithModule returns l, or the global logger when l is nil, with the module
// field set.
func WithModule(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Get()
	}
	return l.With(slog.String("module", name))
}

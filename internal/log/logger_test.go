package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Get()
	current.Store(newLogger(&buf, "DEBUG", "json"))
	t.Cleanup(func() { current.Store(prev) })
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "INFO", "json").Info("hello", "k", "v")
	out := decodeLine(t, &buf)
	assert.Equal(t, "hello", out["msg"])
	assert.Equal(t, "v", out["k"])

	buf.Reset()
	newLogger(&buf, "INFO", "TEXT").Info("hello", "k", "v")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
	assert.True(t, strings.Contains(buf.String(), "k=v"))
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "WARN", "json")
	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Equal(t, "kept", decodeLine(t, &buf)["msg"])
}

func TestContextHelpers(t *testing.T) {
	tests := []struct {
		name  string
		build func() *slog.Logger
		key   string
		want  string
	}{
		{"component", func() *slog.Logger { return WithComponent("api") }, "component", "api"},
		{"request", func() *slog.Logger { return WithRequest(nil, "req-1") }, "request_id", "req-1"},
		{"module", func() *slog.Logger { return WithModule(nil, "tempSensor") }, "module", "tempSensor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureGlobal(t)
			tt.build().Info("hello")
			out := decodeLine(t, buf)
			assert.Equal(t, tt.want, out[tt.key])
			assert.Equal(t, "hello", out["msg"])
		})
	}
}

func TestWithRequest_KeepsBaseLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	base := newLogger(&buf, "INFO", "json").With("component", "requests")

	WithModule(WithRequest(base, "req-9"), "sensor").Info("hello")
	out := decodeLine(t, &buf)
	assert.Equal(t, "requests", out["component"])
	assert.Equal(t, "req-9", out["request_id"])
	assert.Equal(t, "sensor", out["module"])
}

func TestGet_ConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	loggers := make([]*slog.Logger, 8)
	for i := range loggers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loggers[i] = Get()
		}()
	}
	wg.Wait()

	for _, l := range loggers {
		require.NotNil(t, l)
		assert.Same(t, loggers[0], l)
	}
}

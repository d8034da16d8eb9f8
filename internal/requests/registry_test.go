package requests

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticHandler(name, out string) Handler {
	return NewHandlerFunc(name, func(ctx context.Context, payload *string) (*string, error) {
		return Ptr(out), nil
	})
}

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry([]Handler{staticHandler("req1", "a")}, slog.Default())

	for _, name := range []string{"req1", "ReQ1", "REQ1"} {
		h, ok := reg.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, "req1", h.Name())
	}

	_, ok := reg.Lookup("req")
	assert.False(t, ok)
	_, ok = reg.Lookup("")
	assert.False(t, ok)
	_, ok = reg.Lookup(" \t")
	assert.False(t, ok)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reg := NewRegistry([]Handler{
		staticHandler("Restart", "first"),
		staticHandler("restart", "second"),
	}, logger)

	assert.Len(t, reg.Names(), 1)
	h, ok := reg.Lookup("RESTART")
	require.True(t, ok)
	out, err := h.Handle(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "second", *out)
	assert.Contains(t, buf.String(), "duplicate request handler")
}

func TestRegistry_SkipsInvalidHandlers(t *testing.T) {
	reg := NewRegistry([]Handler{nil, staticHandler("  ", "x"), staticHandler("ping", "")}, slog.Default())
	assert.Equal(t, []string{"ping"}, reg.Names())
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry([]Handler{
		staticHandler("restartModule", ""),
		staticHandler("Ping", ""),
		staticHandler("getModules", ""),
	}, nil)
	assert.Equal(t, []string{"getmodules", "ping", "restartmodule"}, reg.Names())
}

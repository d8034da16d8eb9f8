package requests

import (
	"log/slog"
	"sort"
	"strings"
)

// Registry maps lower-cased request names to handlers.
// It is immutable after NewRegistry returns and safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry indexes handlers by lower-cased name. Later handlers replace
// earlier ones with the same normalized name. Nil handlers and handlers with
// a blank name are skipped.
func NewRegistry(handlers []Handler, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for i, h := range handlers {
		if h == nil {
			logger.Warn("skipping nil request handler", "index", i)
			continue
		}
		name := h.Name()
		if strings.TrimSpace(name) == "" {
			logger.Warn("skipping request handler with blank name", "index", i)
			continue
		}
		key := normalizeName(name)
		if _, exists := r.handlers[key]; exists {
			logger.Warn("duplicate request handler, last registration wins", "request", name)
		}
		r.handlers[key] = h
	}
	return r
}

// Lookup returns the handler registered for name, ignoring case.
func (r *Registry) Lookup(name string) (Handler, bool) {
	if strings.TrimSpace(name) == "" {
		return nil, false
	}
	h, ok := r.handlers[normalizeName(name)]
	return h, ok
}

// Names returns the normalized registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

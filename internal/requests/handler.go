package requests

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks github.com/mattjoyce/edgeagent/internal/requests Handler

import "context"

// Handler executes one named request.
//
// payload is nil when the caller supplied no payload. A nil return payload
// is passed through to the caller as an absent response body.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload *string) (*string, error)
}

// HandleFunc is the function shape of Handler.Handle.
type HandleFunc func(ctx context.Context, payload *string) (*string, error)

type funcHandler struct {
	name string
	fn   HandleFunc
}

// NewHandlerFunc adapts fn into a Handler registered under name.
func NewHandlerFunc(name string, fn HandleFunc) Handler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Handle(ctx context.Context, payload *string) (*string, error) {
	return h.fn(ctx, payload)
}

// Response is the externally visible result of one dispatch.
type Response struct {
	Status  int
	Payload *string
}

// Ptr returns a pointer to s. Handlers use it to return literal payloads.
func Ptr(s string) *string { return &s }

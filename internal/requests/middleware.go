package requests

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Middleware decorates a Handler. The returned handler must keep h's name.
type Middleware func(h Handler) Handler

// Chain applies mws to h so that mws[0] is the outermost wrapper.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Traced records a span around each handler invocation.
func Traced() Middleware {
	tracer := otel.Tracer("edgeagent-handlers")
	return func(h Handler) Handler {
		name := h.Name()
		return NewHandlerFunc(name, func(ctx context.Context, payload *string) (*string, error) {
			ctx, span := tracer.Start(ctx, "handler."+normalizeName(name),
				trace.WithAttributes(
					attribute.String("handler.name", name),
					attribute.Bool("request.has_payload", payload != nil),
				))
			defer span.End()

			out, err := h.Handle(ctx, payload)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, KindOf(err).String())
				return out, err
			}
			span.SetStatus(codes.Ok, "")
			return out, nil
		})
	}
}

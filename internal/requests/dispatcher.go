package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/edgeagent/internal/log"
	"github.com/mattjoyce/edgeagent/internal/metrics"
)

// Publisher receives a notification for every completed request.
// events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// EventRequestCompleted is the event type published after each dispatch.
const EventRequestCompleted = "request.completed"

// Dispatcher is the entry point for named requests.
type Dispatcher struct {
	registry  *Registry
	timeout   timeoutPolicy
	logger    *slog.Logger
	tracer    trace.Tracer
	publisher Publisher
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	logger     *slog.Logger
	publisher  Publisher
	middleware []Middleware
}

// WithLogger overrides the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *dispatcherOptions) { o.logger = l }
}

// WithPublisher sends request.completed events to p.
func WithPublisher(p Publisher) Option {
	return func(o *dispatcherOptions) { o.publisher = p }
}

// WithMiddleware wraps every registered handler, first middleware outermost.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *dispatcherOptions) { o.middleware = append(o.middleware, mws...) }
}

// New builds a Dispatcher over handlers. timeout applies to every request;
// non-positive values fall back to DefaultTimeout.
func New(handlers []Handler, timeout time.Duration, opts ...Option) *Dispatcher {
	o := dispatcherOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.WithComponent("requests")
	}

	wrapped := handlers
	if len(o.middleware) > 0 {
		wrapped = make([]Handler, 0, len(handlers))
		for _, h := range handlers {
			if h == nil {
				wrapped = append(wrapped, nil)
				continue
			}
			wrapped = append(wrapped, Chain(h, o.middleware...))
		}
	}

	return &Dispatcher{
		registry:  NewRegistry(wrapped, o.logger),
		timeout:   newTimeoutPolicy(timeout),
		logger:    o.logger,
		tracer:    otel.Tracer("edgeagent-requests"),
		publisher: o.publisher,
	}
}

// Handlers returns the registered request names.
func (d *Dispatcher) Handlers() []string { return d.registry.Names() }

// Timeout returns the per-request timeout.
func (d *Dispatcher) Timeout() time.Duration { return d.timeout.duration() }

// ProcessRequest dispatches the named request and returns its response.
// It never fails: every error path is converted to a status and JSON body.
func (d *Dispatcher) ProcessRequest(ctx context.Context, name string, payload *string) Response {
	requestID := uuid.NewString()
	logger := log.WithRequest(d.logger, requestID).With("request", name)

	ctx, span := d.tracer.Start(ctx, "requests.ProcessRequest",
		trace.WithAttributes(
			attribute.String("request.name", name),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	start := time.Now()
	label := metrics.UnknownRequest
	o := d.dispatch(ctx, name, payload, logger, &label)
	resp := classify(o)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("response.status", resp.Status),
		attribute.String("request.outcome", o.kind.String()),
	)
	if o.kind == outcomeSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, o.kind.String())
	}

	metrics.RequestsTotal.WithLabelValues(label, fmt.Sprint(resp.Status)).Inc()

	if d.publisher != nil {
		d.publisher.Publish(EventRequestCompleted, map[string]any{
			"request_id":  requestID,
			"request":     name,
			"status":      resp.Status,
			"outcome":     o.kind.String(),
			"duration_ms": elapsed.Milliseconds(),
		})
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, payload *string, logger *slog.Logger, label *string) outcome {
	if strings.TrimSpace(name) == "" {
		logger.Warn("rejecting request without a name")
		return invalidRequest("request name missing")
	}

	h, ok := d.registry.Lookup(name)
	if !ok {
		logger.Warn("no handler registered for request")
		return invalidRequest(fmt.Sprintf("no handler registered for %s", name))
	}
	*label = normalizeName(h.Name())

	return d.invoke(ctx, h, payload, logger, *label)
}

type handlerResult struct {
	payload *string
	err     error
}

// invoke runs h once under a fresh timeout scope and waits for it or the deadline.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, payload *string, logger *slog.Logger, label string) outcome {
	callCtx, cancel := d.timeout.scope(ctx)
	defer cancel()

	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()

	start := time.Now()
	logger.Debug("invoking request handler", "timeout", d.timeout.duration())

	// Buffered so an orphaned handler can still deliver and exit.
	done := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("request handler panicked", "panic", r)
				done <- handlerResult{err: fmt.Errorf("handler %s panicked: %v", h.Name(), r)}
			}
		}()
		p, err := h.Handle(callCtx, payload)
		done <- handlerResult{payload: p, err: err}
	}()

	var o outcome
	select {
	case res := <-done:
		switch {
		case res.err == nil:
			o = success(res.payload)
			logger.Info("request handled", "duration_ms", time.Since(start).Milliseconds())
		case errors.Is(res.err, context.DeadlineExceeded) && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			o = d.timeoutOutcome(ctx, start)
			logger.Warn("request handler timed out", "timeout", o.timeout)
		default:
			o = handlerFault(res.err)
			logger.Warn("request handler failed", "error", res.err, "kind", o.fault.String())
		}
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			o = d.timeoutOutcome(ctx, start)
			logger.Warn("request handler timed out, abandoning wait", "timeout", o.timeout)
		} else {
			o = handlerFault(fmt.Errorf("request cancelled: %w", callCtx.Err()))
			logger.Warn("request cancelled by caller", "error", callCtx.Err())
		}
	}

	metrics.RequestDuration.WithLabelValues(label, o.kind.String()).Observe(time.Since(start).Seconds())
	return o
}

// timeoutOutcome reports the budget that ran out. A caller deadline earlier
// than the dispatcher's own is reported as the time actually waited.
func (d *Dispatcher) timeoutOutcome(parent context.Context, start time.Time) outcome {
	if dl, ok := parent.Deadline(); ok && dl.Before(start.Add(d.timeout.duration())) {
		return timedOut(time.Since(start).Round(time.Millisecond))
	}
	return timedOut(d.timeout.duration())
}

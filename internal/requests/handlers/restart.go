package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/edgeagent/internal/log"
	"github.com/mattjoyce/edgeagent/internal/metrics"
	"github.com/mattjoyce/edgeagent/internal/modules"
	"github.com/mattjoyce/edgeagent/internal/requests"
)

// RestartModuleName is the request name answered by RestartModule.
const RestartModuleName = "restartModule"

// RestartRecorder stores the result of restart attempts. modules.Store satisfies it.
type RestartRecorder interface {
	RecordRestart(ctx context.Context, name string, restartErr error) error
}

type restartPayload struct {
	SchemaVersion string `json:"schemaVersion" validate:"required"`
	ID            string `json:"id" validate:"required"`
}

// RestartModule restarts one module through the runtime.
//
// Payload: {"schemaVersion":"1.0","id":"<module>"}.
type RestartModule struct {
	runtime  modules.Runtime
	recorder RestartRecorder
	logger   *slog.Logger
}

// NewRestartModule builds the handler. recorder may be nil.
func NewRestartModule(runtime modules.Runtime, recorder RestartRecorder) *RestartModule {
	return &RestartModule{
		runtime:  runtime,
		recorder: recorder,
		logger:   log.WithComponent("handlers").With("request", RestartModuleName),
	}
}

func (h *RestartModule) Name() string { return RestartModuleName }

func (h *RestartModule) Handle(ctx context.Context, payload *string) (*string, error) {
	var req restartPayload
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if err := checkSchemaVersion(req.SchemaVersion); err != nil {
		return nil, err
	}

	logger := log.WithModule(h.logger, req.ID)
	err := h.runtime.Restart(ctx, req.ID)
	if errors.Is(err, modules.ErrUnknownModule) {
		metrics.ModuleRestartsTotal.WithLabelValues("unknown", "unknown_module").Inc()
		return nil, requests.InvalidOperation("module %s not found in the current environment", req.ID)
	}

	if h.recorder != nil {
		// The restart already happened; record with a context the caller's
		// deadline cannot cut short.
		if rerr := h.recorder.RecordRestart(context.WithoutCancel(ctx), req.ID, err); rerr != nil {
			logger.Warn("failed to record module restart", "error", rerr)
		}
	}

	if err != nil {
		metrics.ModuleRestartsTotal.WithLabelValues(req.ID, "failed").Inc()
		return nil, fmt.Errorf("restart module %s: %w", req.ID, err)
	}

	metrics.ModuleRestartsTotal.WithLabelValues(req.ID, "ok").Inc()
	logger.Info("module restart requested")
	return nil, nil
}

var _ requests.Handler = (*RestartModule)(nil)

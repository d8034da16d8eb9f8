package handlers

import (
	"context"

	"github.com/mattjoyce/edgeagent/internal/requests"
)

// PingName is the request name answered by Ping.
const PingName = "ping"

// Ping answers liveness probes with an empty 200 response.
type Ping struct{}

func (Ping) Name() string { return PingName }

func (Ping) Handle(ctx context.Context, payload *string) (*string, error) {
	return nil, nil
}

var _ requests.Handler = Ping{}

package requests

import (
	"context"
	"time"
)

// DefaultTimeout applies when a dispatcher is built with a non-positive timeout.
const DefaultTimeout = 60 * time.Second

// timeoutPolicy derives one cancellation scope per handler invocation.
type timeoutPolicy struct {
	d time.Duration
}

func newTimeoutPolicy(d time.Duration) timeoutPolicy {
	if d <= 0 {
		d = DefaultTimeout
	}
	return timeoutPolicy{d: d}
}

// scope starts the invocation's timer now. The returned cancel must be called
// once the dispatcher stops waiting.
func (p timeoutPolicy) scope(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, p.d)
}

func (p timeoutPolicy) duration() time.Duration { return p.d }

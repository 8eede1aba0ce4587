package agent

import (
	"context"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

// Sink receives the outbound event stream for one conversation. The
// gateway implements it over a websocket; tests implement it with an
// in-memory recorder; the planner wraps it to capture delegated output.
type Sink interface {
	Send(ctx context.Context, ev *models.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev *models.Event) error

func (f SinkFunc) Send(ctx context.Context, ev *models.Event) error { return f(ctx, ev) }

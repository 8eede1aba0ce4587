package planning

import (
	"context"
	"strings"
	"sync"

	"github.com/cadenza-ai/cadenza/internal/agent"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

// captureSink tees the event stream of a delegated task: every event is
// forwarded to the client live, while content deltas are also
// accumulated so the planner can store the agent's answer as the task
// result.
type captureSink struct {
	inner agent.Sink

	mu  sync.Mutex
	buf strings.Builder
}

func newCaptureSink(inner agent.Sink) *captureSink {
	return &captureSink{inner: inner}
}

func (c *captureSink) Send(ctx context.Context, ev *models.Event) error {
	if ev.Type == models.EventContentDelta {
		c.mu.Lock()
		c.buf.WriteString(ev.Content)
		c.mu.Unlock()
	}
	return c.inner.Send(ctx, ev)
}

// Text returns everything captured so far.
func (c *captureSink) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

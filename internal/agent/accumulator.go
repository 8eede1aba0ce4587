package agent

import (
	"sort"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

// ToolCallAccumulator assembles tool calls from streamed fragments.
//
// Providers deliver tool calls as interleaved deltas keyed by a stream
// index: the first fragment for an index carries the call id, later
// fragments extend the name and argument text. Fragments for different
// calls may interleave; concatenation order within one index is arrival
// order.
type ToolCallAccumulator struct {
	calls map[int]*models.ToolCall
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: make(map[int]*models.ToolCall)}
}

// Add merges one fragment. The id is set by whichever fragment carries
// it; name and argument text accumulate by concatenation, so a name
// split across fragments reassembles just like the arguments do.
func (a *ToolCallAccumulator) Add(index int, id, name, arguments string) {
	call, ok := a.calls[index]
	if !ok {
		call = &models.ToolCall{}
		a.calls[index] = call
	}
	if id != "" {
		call.ID = id
	}
	call.Name += name
	call.Arguments += arguments
}

// Len reports how many distinct calls have been seen.
func (a *ToolCallAccumulator) Len() int { return len(a.calls) }

// Calls returns the assembled calls ordered by stream index, which is
// the order the model requested them in.
func (a *ToolCallAccumulator) Calls() []models.ToolCall {
	indexes := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]models.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, *a.calls[i])
	}
	return out
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

const (
	maxToolNameLength = 128
	maxArgumentsBytes = 1 << 20
)

// Tool is a capability the model can invoke.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON Schema for the tool's parameters.
	Schema() json.RawMessage
	// Execute runs the tool. Implementations should return domain
	// failures as ToolResult{IsError: true} rather than an error; a
	// returned error is treated the same way by the registry.
	Execute(ctx context.Context, args json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Content string
	IsError bool
}

// Registry maps tool names to implementations. Safe for concurrent use.
//
// Execution never raises: every failure mode, including unknown tools,
// oversized inputs, tool errors, and panics, degrades to an error-marked
// textual result that is fed back to the model.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in registration-independent
// map order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions returns the tool descriptions advertised to the model.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.Schema(),
		})
	}
	return defs
}

// ExecuteCall runs one accumulated tool call and always returns a
// result. The arguments travel as raw JSON text; tools parse them
// themselves.
func (r *Registry) ExecuteCall(ctx context.Context, call models.ToolCall) (result *ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = &ToolResult{
				Content: fmt.Sprintf("tool %s panicked: %v", call.Name, rec),
				IsError: true,
			}
		}
	}()

	if len(call.Name) == 0 || len(call.Name) > maxToolNameLength {
		return &ToolResult{Content: fmt.Sprintf("invalid tool name: %q", call.Name), IsError: true}
	}
	if len(call.Arguments) > maxArgumentsBytes {
		return &ToolResult{Content: fmt.Sprintf("tool arguments too large: %d bytes", len(call.Arguments)), IsError: true}
	}

	tool, ok := r.Get(call.Name)
	if !ok {
		return &ToolResult{Content: "tool not found: " + call.Name, IsError: true}
	}

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	res, err := tool.Execute(ctx, args)
	if err != nil {
		return &ToolResult{Content: "tool execution failed: " + err.Error(), IsError: true}
	}
	if res == nil {
		return &ToolResult{Content: "", IsError: false}
	}
	return res
}

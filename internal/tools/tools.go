// Package tools provides the built-in tool set: calculator, clock,
// weather lookup, workspace file access, and terminal execution. Every
// tool degrades failures to an error-marked result instead of
// returning a Go error, so a misbehaving tool feeds an "Error: ..."
// message back to the model rather than aborting the turn.
package tools

import (
	"encoding/json"

	"github.com/cadenza-ai/cadenza/internal/agent"
)

// Config controls built-in tool defaults.
type Config struct {
	// Workspace roots relative paths for the file tools. Empty means
	// the current directory.
	Workspace string
	// MaxReadBytes caps file reads. Zero uses the tool default.
	MaxReadBytes int
	// ExecTimeoutSeconds bounds terminal commands. Zero uses the tool
	// default.
	ExecTimeoutSeconds int
}

// RegisterBuiltins adds every built-in tool to the registry.
func RegisterBuiltins(registry *agent.Registry, cfg Config) {
	resolver := Resolver{Root: cfg.Workspace}
	registry.Register(NewCalculatorTool())
	registry.Register(NewClockTool())
	registry.Register(NewWeatherTool(nil))
	registry.Register(NewReadTool(resolver, cfg.MaxReadBytes))
	registry.Register(NewWriteTool(resolver))
	registry.Register(NewListTool(resolver))
	registry.Register(NewTerminalTool(cfg.ExecTimeoutSeconds))
}

func mustSchema(schema map[string]interface{}) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, IsError: true}
}

func jsonResult(v interface{}) *agent.ToolResult {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("encode result: " + err.Error())
	}
	return &agent.ToolResult{Content: string(payload)}
}

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cadenza-ai/cadenza/internal/agent"
)

const defaultExecTimeout = 30 * time.Second

// deniedCommandFragments blocks the obviously destructive commands an
// LLM has no business running.
var deniedCommandFragments = []string{
	"rm -rf",
	"mkfs",
	"dd if=",
	":(){:|:&};:",
	"shutdown",
	"reboot",
}

// TerminalTool runs shell commands with a timeout.
type TerminalTool struct {
	timeout time.Duration
}

// NewTerminalTool creates a terminal tool. timeoutSeconds <= 0 uses the
// default.
func NewTerminalTool(timeoutSeconds int) *TerminalTool {
	timeout := defaultExecTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &TerminalTool{timeout: timeout}
}

func (t *TerminalTool) Name() string { return "execute_command" }

func (t *TerminalTool) Description() string {
	return "Execute a shell command in the terminal. Use this to run commands, check system info, list files, etc."
}

func (t *TerminalTool) Schema() json.RawMessage {
	return mustSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute, e.g. 'ls -la', 'pwd', 'echo hello'",
			},
			"timeout_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds (capped by the tool default).",
				"minimum":     0,
			},
		},
		"required": []string{"command"},
	})
}

func (t *TerminalTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return toolError("command is required"), nil
	}
	lowered := strings.ToLower(command)
	for _, fragment := range deniedCommandFragments {
		if strings.Contains(lowered, fragment) {
			return toolError(fmt.Sprintf("refusing to run %q: blocked command", command)), nil
		}
	}

	timeout := t.timeout
	if input.TimeoutSeconds > 0 {
		requested := time.Duration(input.TimeoutSeconds) * time.Second
		if requested < timeout {
			timeout = requested
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return toolError(fmt.Sprintf("command timed out after %s", timeout)), nil
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return toolError(fmt.Sprintf("run command: %v", err)), nil
		}
	}

	result := jsonResult(map[string]interface{}{
		"exit_code":   exitCode,
		"stdout":      strings.TrimRight(stdout.String(), "\n"),
		"stderr":      strings.TrimRight(stderr.String(), "\n"),
		"duration_ms": elapsed.Milliseconds(),
	})
	result.IsError = exitCode != 0
	return result, nil
}

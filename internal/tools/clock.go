package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cadenza-ai/cadenza/internal/agent"
)

// ClockTool reports the current date and time.
type ClockTool struct {
	// now is swapped in tests.
	now func() time.Time
}

// NewClockTool creates a clock tool using the system clock.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string { return "get_current_time" }

func (t *ClockTool) Description() string {
	return "Get current date and time information. Can return time in different timezones and formats."
}

func (t *ClockTool) Schema() json.RawMessage {
	return mustSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "Timezone offset in hours, e.g. '+8', '+0' for UTC, '-5' for New York EST. Default: +0.",
			},
			"output_format": map[string]interface{}{
				"type":        "string",
				"description": "Output format. Default: full.",
				"enum":        []string{"full", "date", "time", "timestamp"},
			},
		},
		"required": []string{},
	})
}

func (t *ClockTool) Execute(_ context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Timezone     string `json:"timezone"`
		OutputFormat string `json:"output_format"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}

	offset := 0
	if tz := strings.TrimSpace(input.Timezone); tz != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(tz, "+"))
		if err != nil || parsed < -12 || parsed > 14 {
			return toolError(fmt.Sprintf("invalid timezone offset %q; use e.g. '+8', '-5'", input.Timezone)), nil
		}
		offset = parsed
	}

	local := t.now().UTC().Add(time.Duration(offset) * time.Hour)
	zone := fmt.Sprintf("UTC%+d", offset)

	switch input.OutputFormat {
	case "", "full":
		return &agent.ToolResult{Content: fmt.Sprintf("%s %s (%s)",
			local.Format("2006-01-02 Monday"), local.Format("15:04:05"), zone)}, nil
	case "date":
		return &agent.ToolResult{Content: local.Format("2006-01-02 Monday")}, nil
	case "time":
		return &agent.ToolResult{Content: local.Format("15:04:05")}, nil
	case "timestamp":
		return &agent.ToolResult{Content: strconv.FormatInt(t.now().Unix(), 10)}, nil
	default:
		return toolError(fmt.Sprintf("unknown output format %q", input.OutputFormat)), nil
	}
}

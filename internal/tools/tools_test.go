package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cadenza-ai/cadenza/internal/agent"
)

func execute(t *testing.T, tool agent.Tool, params map[string]interface{}) *agent.ToolResult {
	t.Helper()
	payload, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	result, err := tool.Execute(context.Background(), payload)
	if err != nil {
		t.Fatalf("execute %s: %v", tool.Name(), err)
	}
	return result
}

func TestClockFormats(t *testing.T) {
	clock := NewClockTool()
	clock.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	}

	result := execute(t, clock, map[string]interface{}{"timezone": "+8", "output_format": "full"})
	if result.IsError || result.Content != "2025-03-14 Friday 17:26:53 (UTC+8)" {
		t.Errorf("full = %q", result.Content)
	}

	result = execute(t, clock, map[string]interface{}{"output_format": "time"})
	if result.Content != "09:26:53" {
		t.Errorf("time = %q", result.Content)
	}

	result = execute(t, clock, map[string]interface{}{"timezone": "-5", "output_format": "date"})
	if result.Content != "2025-03-14 Friday" {
		t.Errorf("date = %q", result.Content)
	}

	result = execute(t, clock, map[string]interface{}{"output_format": "timestamp"})
	if result.Content != "1741944413" {
		t.Errorf("timestamp = %q", result.Content)
	}
}

func TestClockRejectsBadTimezone(t *testing.T) {
	clock := NewClockTool()
	for _, tz := range []string{"abc", "+20", "-15"} {
		result := execute(t, clock, map[string]interface{}{"timezone": tz})
		if !result.IsError {
			t.Errorf("timezone %q should be rejected", tz)
		}
	}
}

func TestWeatherLookup(t *testing.T) {
	weather := NewWeatherTool(nil)

	result := execute(t, weather, map[string]interface{}{"location": "Beijing"})
	if result.IsError || !strings.Contains(result.Content, "Weather in Beijing") {
		t.Errorf("hit = %+v", result)
	}

	result = execute(t, weather, map[string]interface{}{"location": "Atlantis"})
	if !result.IsError || !strings.Contains(result.Content, "known locations") {
		t.Errorf("miss should list known locations: %+v", result)
	}

	result = execute(t, weather, map[string]interface{}{})
	if !result.IsError {
		t.Error("missing location should be an error result")
	}
}

func TestFileToolsRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	resolver := Resolver{Root: workspace}

	write := NewWriteTool(resolver)
	result := execute(t, write, map[string]interface{}{
		"path":    "notes/hello.txt",
		"content": "hello world",
	})
	if result.IsError {
		t.Fatalf("write: %s", result.Content)
	}

	read := NewReadTool(resolver, 0)
	result = execute(t, read, map[string]interface{}{"path": "notes/hello.txt"})
	if result.IsError {
		t.Fatalf("read: %s", result.Content)
	}
	var readOut struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(result.Content), &readOut); err != nil {
		t.Fatalf("decode read result: %v", err)
	}
	if readOut.Content != "hello world" || readOut.Truncated {
		t.Errorf("read = %+v", readOut)
	}

	result = execute(t, write, map[string]interface{}{
		"path":    "notes/hello.txt",
		"content": "!",
		"append":  true,
	})
	if result.IsError {
		t.Fatalf("append: %s", result.Content)
	}
	data, _ := os.ReadFile(filepath.Join(workspace, "notes/hello.txt"))
	if string(data) != "hello world!" {
		t.Errorf("file after append = %q", data)
	}
}

func TestReadToolRespectsOffsetAndLimit(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "data.txt"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	read := NewReadTool(Resolver{Root: workspace}, 0)
	result := execute(t, read, map[string]interface{}{
		"path": "data.txt", "offset": 2, "max_bytes": 4,
	})
	var out struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out.Content != "2345" || !out.Truncated {
		t.Errorf("out = %+v", out)
	}
}

func TestFileToolsRejectEscapes(t *testing.T) {
	workspace := t.TempDir()
	resolver := Resolver{Root: workspace}

	for _, tool := range []agent.Tool{NewReadTool(resolver, 0), NewWriteTool(resolver)} {
		result := execute(t, tool, map[string]interface{}{
			"path": "../outside.txt", "content": "x",
		})
		if !result.IsError || !strings.Contains(result.Content, "escapes workspace") {
			t.Errorf("%s: escape not rejected: %+v", tool.Name(), result)
		}
	}
}

func TestListTool(t *testing.T) {
	workspace := t.TempDir()
	os.Mkdir(filepath.Join(workspace, "sub"), 0o755)
	os.WriteFile(filepath.Join(workspace, "b.txt"), []byte("bb"), 0o644)
	os.WriteFile(filepath.Join(workspace, "a.txt"), []byte("a"), 0o644)

	list := NewListTool(Resolver{Root: workspace})
	result := execute(t, list, map[string]interface{}{})
	if result.IsError {
		t.Fatalf("list: %s", result.Content)
	}
	var out struct {
		Entries []struct {
			Name string `json:"name"`
			Dir  bool   `json:"dir"`
			Size int64  `json:"size"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Entries) != 3 {
		t.Fatalf("entries = %+v", out.Entries)
	}
	if out.Entries[0].Name != "a.txt" || out.Entries[0].Size != 1 {
		t.Errorf("first entry = %+v", out.Entries[0])
	}
	if !out.Entries[2].Dir {
		t.Errorf("sub should be a directory: %+v", out.Entries[2])
	}
}

func TestTerminalRunsCommands(t *testing.T) {
	term := NewTerminalTool(5)

	result := execute(t, term, map[string]interface{}{"command": "echo hello"})
	if result.IsError {
		t.Fatalf("echo: %s", result.Content)
	}
	var out struct {
		ExitCode int    `json:"exit_code"`
		Stdout   string `json:"stdout"`
	}
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 0 || out.Stdout != "hello" {
		t.Errorf("out = %+v", out)
	}
}

func TestTerminalNonZeroExitIsError(t *testing.T) {
	result := execute(t, NewTerminalTool(5), map[string]interface{}{"command": "exit 3"})
	if !result.IsError {
		t.Fatal("non-zero exit should mark the result as an error")
	}
	var out struct {
		ExitCode int `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 3 {
		t.Errorf("exit_code = %d", out.ExitCode)
	}
}

func TestTerminalBlocksDangerousCommands(t *testing.T) {
	result := execute(t, NewTerminalTool(5), map[string]interface{}{"command": "rm -rf /"})
	if !result.IsError || !strings.Contains(result.Content, "blocked") {
		t.Errorf("dangerous command not blocked: %+v", result)
	}
}

func TestTerminalTimesOut(t *testing.T) {
	result := execute(t, NewTerminalTool(1), map[string]interface{}{"command": "sleep 5"})
	if !result.IsError || !strings.Contains(result.Content, "timed out") {
		t.Errorf("timeout not reported: %+v", result)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	registry := agent.NewRegistry()
	RegisterBuiltins(registry, Config{Workspace: t.TempDir()})

	for _, name := range []string{
		"calculator", "get_current_time", "get_weather",
		"read_file", "write_file", "list_directory", "execute_command",
	} {
		if _, ok := registry.Get(name); !ok {
			t.Errorf("missing builtin %s", name)
		}
	}
}

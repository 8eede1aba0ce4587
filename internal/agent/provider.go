package agent

import (
	"context"
	"encoding/json"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

// CompletionRequest is a provider-agnostic streaming completion request.
type CompletionRequest struct {
	Model       string
	Messages    []models.Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float32
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Schema is the JSON Schema for the tool's parameters.
	Schema json.RawMessage
}

// CompletionChunk is one element of a provider's response stream.
// Text fragments arrive as they are generated. Tool calls arrive fully
// accumulated, one chunk per call in request order, before the Done
// chunk. Err is terminal.
type CompletionChunk struct {
	Text     string
	ToolCall *models.ToolCall
	Done     bool
	Err      error
}

// LLMProvider is a streaming chat-completions backend.
type LLMProvider interface {
	// Complete starts a streaming completion. The returned channel is
	// closed after the Done or Err chunk. Cancelling ctx tears the
	// stream down.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name identifies the provider for logs and metrics.
	Name() string
}

package agent

import (
	"context"

	"github.com/cadenza-ai/cadenza/internal/sessions"
)

// DefaultMaxIterations bounds the tool-calling loop when a config does
// not set its own cap.
const DefaultMaxIterations = 10

// MemoryHooks lets an agent consult and feed a memory subsystem around
// turn execution. All methods are optional no-ops for agents without
// memory. Implementations must not block on I/O.
type MemoryHooks interface {
	// ContextFor returns a formatted block of relevant memories to
	// prepend to the user input, or "" when nothing relevant exists.
	ContextFor(sessionID, agentName, userInput string) string

	// RecordExchange stores a completed user/assistant exchange.
	RecordExchange(sessionID, agentName, userInput, response string)

	// RecordToolCall stores a tool observation made during the turn.
	RecordToolCall(sessionID, agentName, toolName, result string)
}

// Info describes an agent for listing and switch responses.
type Info struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	IsDefault     bool     `json:"is_default"`
	Tools         []string `json:"available_tools"`
	MaxIterations int      `json:"max_iterations"`
}

// Handler is anything the manager can route a turn to: plain executing
// agents and the planner both implement it.
type Handler interface {
	Name() string
	Info() Info
	Run(ctx context.Context, sink Sink, sess *sessions.Session, input string) (Outcome, error)
}

// Config assembles an agent from its prompt, model parameters, tool
// registry and optional memory hooks. Variants of the same loop differ
// only in configuration.
type Config struct {
	Name          string
	Type          string
	Description   string
	SystemPrompt  string
	Model         string
	MaxIterations int
	MaxTokens     int
	Temperature   float32
	Tools         *Registry
	Memory        MemoryHooks
}

// Agent is a configured conversational agent backed by the shared turn
// executor.
type Agent struct {
	name          string
	agentType     string
	description   string
	systemPrompt  string
	model         string
	maxIterations int
	maxTokens     int
	temperature   float32
	tools         *Registry
	memory        MemoryHooks

	executor *Executor
}

// NewAgent builds an agent from config. Zero-value fields get defaults:
// type "function_call", an empty tool registry, DefaultMaxIterations.
func NewAgent(cfg Config, executor *Executor) *Agent {
	if cfg.Type == "" {
		cfg.Type = "function_call"
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tools == nil {
		cfg.Tools = NewRegistry()
	}
	return &Agent{
		name:          cfg.Name,
		agentType:     cfg.Type,
		description:   cfg.Description,
		systemPrompt:  cfg.SystemPrompt,
		model:         cfg.Model,
		maxIterations: cfg.MaxIterations,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		tools:         cfg.Tools,
		memory:        cfg.Memory,
		executor:      executor,
	}
}

// Name returns the agent's registered name.
func (a *Agent) Name() string { return a.name }

// Info returns the agent's listing entry. IsDefault is filled in by the
// manager.
func (a *Agent) Info() Info {
	return Info{
		Name:          a.name,
		Type:          a.agentType,
		Description:   a.description,
		Tools:         a.tools.Names(),
		MaxIterations: a.maxIterations,
	}
}

// Run executes one turn on the session.
func (a *Agent) Run(ctx context.Context, sink Sink, sess *sessions.Session, input string) (Outcome, error) {
	return a.executor.RunTurn(ctx, sink, sess, a, input)
}

package memory

import (
	"github.com/cadenza-ai/cadenza/pkg/models"
)

// Hooks adapts the memory service to the agent executor's turn
// lifecycle: relevant memories are injected before the turn, exchanges
// and tool observations are recorded after. It reads and writes the
// session-scoped store, so agents sharing a session share what they
// learn.
type Hooks struct {
	service *Service
}

// NewHooks creates turn hooks backed by the given service.
func NewHooks(service *Service) *Hooks {
	return &Hooks{service: service}
}

// ContextFor returns a formatted block of memories relevant to the
// user input, drawing from the session store and global store.
func (h *Hooks) ContextFor(sessionID, agentName, userInput string) string {
	store, err := h.service.Manager(ScopeSession, sessionID, agentName)
	if err != nil {
		return ""
	}
	if block := store.Context(userInput); block != "" {
		return block
	}
	return h.service.Global().Context(userInput)
}

// RecordExchange stores the completed exchange as a medium-importance
// short-term memory.
func (h *Hooks) RecordExchange(sessionID, agentName, userInput, response string) {
	store, err := h.service.Manager(ScopeSession, sessionID, agentName)
	if err != nil {
		return
	}
	store.Add(
		"User: "+userInput+"\nAssistant: "+response,
		models.MemoryShortTerm,
		models.ImportanceMedium,
		[]string{"conversation"},
		map[string]string{"user_input": userInput, "agent": agentName},
	)
	h.record(ScopeSession, models.MemoryShortTerm)
}

// RecordToolCall stores a tool observation as a low-importance working
// memory tagged with the tool name.
func (h *Hooks) RecordToolCall(sessionID, agentName, toolName, result string) {
	store, err := h.service.Manager(ScopeSession, sessionID, agentName)
	if err != nil {
		return
	}
	store.Add(
		"Tool call: "+toolName+"\nResult: "+result,
		models.MemoryWorking,
		models.ImportanceLow,
		[]string{"tool_call", toolName},
		map[string]string{"tool_name": toolName},
	)
	h.record(ScopeSession, models.MemoryWorking)
}

// AddLongTerm stores a durable fact in the session store. Used by the
// gateway's explicit remember operation.
func (h *Hooks) AddLongTerm(sessionID, content string, importance models.MemoryImportance, tags []string) (models.Memory, error) {
	store, err := h.service.Manager(ScopeSession, sessionID, "")
	if err != nil {
		return models.Memory{}, err
	}
	mem := store.Add(content, models.MemoryLongTerm, importance, tags, nil)
	h.record(ScopeSession, models.MemoryLongTerm)
	return mem, nil
}

func (h *Hooks) record(scope Scope, typ models.MemoryType) {
	if h.service.metrics != nil {
		h.service.metrics.RecordMemory(string(scope), string(typ))
	}
}

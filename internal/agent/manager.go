package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cadenza-ai/cadenza/internal/observability"
)

// Manager owns the set of registered agents, the default agent, and
// per-session agent bindings. Safe for concurrent use.
//
// Routing resolves in order: explicit name on the request, the
// session's binding, the default agent.
type Manager struct {
	mu       sync.RWMutex
	agents   map[string]Handler
	bindings map[string]string
	def      string
	logger   *observability.Logger
}

// NewManager creates an empty agent manager.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		agents:   make(map[string]Handler),
		bindings: make(map[string]string),
		logger:   logger.WithComponent("agent-manager"),
	}
}

// Register adds an agent under its name, replacing any agent already
// registered under that name. The first agent registered becomes the
// default; passing isDefault moves the default to this agent.
func (m *Manager) Register(h Handler, isDefault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[h.Name()] = h
	if isDefault || m.def == "" {
		m.def = h.Name()
	}
	m.logger.Info(context.Background(), "agent registered",
		"agent", h.Name(), "default", m.def == h.Name())
}

// Unregister removes an agent. If it was the default, an arbitrary
// remaining agent becomes the default.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[name]; !ok {
		return false
	}
	delete(m.agents, name)
	if m.def == name {
		m.def = ""
		for n := range m.agents {
			m.def = n
			break
		}
	}
	return true
}

// Get returns the agent registered under name.
func (m *Manager) Get(name string) (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.agents[name]
	return h, ok
}

// Default returns the current default agent, if any.
func (m *Manager) Default() (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.agents[m.def]
	return h, ok
}

// Bind pins a session to an agent by name. Unknown names are rejected
// and leave any existing binding untouched.
func (m *Manager) Bind(sessionID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	m.bindings[sessionID] = name
	m.logger.Info(context.Background(), "session bound to agent",
		"session_id", sessionID, "agent", name)
	return nil
}

// Unbind drops a session's binding, reverting it to the default agent.
func (m *Manager) Unbind(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, sessionID)
}

// Resolve picks the agent for a request: the explicit name if given,
// else the session's binding, else the default. Returns ErrUnknownAgent
// when an explicit name does not exist or when nothing is registered.
func (m *Manager) Resolve(sessionID, explicit string) (Handler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if explicit != "" {
		if h, ok := m.agents[explicit]; ok {
			return h, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, explicit)
	}
	if bound, ok := m.bindings[sessionID]; ok {
		if h, ok := m.agents[bound]; ok {
			return h, nil
		}
	}
	if h, ok := m.agents[m.def]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: no agents registered", ErrUnknownAgent)
}

// List returns every agent's info with the default flagged.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.agents))
	for name, h := range m.agents {
		info := h.Info()
		info.IsDefault = name == m.def
		out = append(out, info)
	}
	return out
}

// Stats summarizes the manager for diagnostics.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.agents))
	for n := range m.agents {
		names = append(names, n)
	}
	return map[string]any{
		"total_agents":   len(m.agents),
		"default_agent":  m.def,
		"bound_sessions": len(m.bindings),
		"agents":         names,
	}
}

package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/cadenza-ai/cadenza/internal/observability"
)

// Scope selects which store a memory operation targets.
type Scope string

const (
	// ScopeGlobal is shared by every agent and session.
	ScopeGlobal Scope = "global"
	// ScopeSession is shared by all agents within one session.
	ScopeSession Scope = "session"
	// ScopeAgent is private to one agent within one session.
	ScopeAgent Scope = "agent"
)

var (
	errSessionIDRequired = errors.New("memory: session id required for this scope")
	errAgentNameRequired = errors.New("memory: agent name required for agent scope")
)

// ServiceConfig caps each scope's tiers. Zero values get defaults.
type ServiceConfig struct {
	GlobalMaxShortTerm  int
	GlobalMaxLongTerm   int
	SessionMaxShortTerm int
	SessionMaxLongTerm  int
	AgentMaxShortTerm   int
	AgentMaxLongTerm    int
}

func (c *ServiceConfig) setDefaults() {
	if c.GlobalMaxShortTerm <= 0 {
		c.GlobalMaxShortTerm = 100
	}
	if c.GlobalMaxLongTerm <= 0 {
		c.GlobalMaxLongTerm = 200
	}
	if c.SessionMaxShortTerm <= 0 {
		c.SessionMaxShortTerm = 50
	}
	if c.SessionMaxLongTerm <= 0 {
		c.SessionMaxLongTerm = 100
	}
	if c.AgentMaxShortTerm <= 0 {
		c.AgentMaxShortTerm = 30
	}
	if c.AgentMaxLongTerm <= 0 {
		c.AgentMaxLongTerm = 50
	}
}

type agentKey struct {
	sessionID string
	agentName string
}

// Service manages memory stores at global, session, and agent scope.
// It is constructed once and injected into whatever needs it; there is
// no process-wide singleton. Session- and agent-scoped stores are
// created lazily on first access.
type Service struct {
	mu       sync.Mutex
	global   *Store
	sessions map[string]*Store
	agents   map[agentKey]*Store
	config   ServiceConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewService creates a memory service. metrics may be nil.
func NewService(config ServiceConfig, logger *observability.Logger, metrics *observability.Metrics) *Service {
	config.setDefaults()
	return &Service{
		global: NewStore(StoreConfig{
			MaxShortTerm: config.GlobalMaxShortTerm,
			MaxLongTerm:  config.GlobalMaxLongTerm,
			MaxWorking:   config.GlobalMaxShortTerm,
		}),
		sessions: make(map[string]*Store),
		agents:   make(map[agentKey]*Store),
		config:   config,
		logger:   logger.WithComponent("memory"),
		metrics:  metrics,
	}
}

// Global returns the store shared across all sessions.
func (s *Service) Global() *Store { return s.global }

// Manager returns the store for the requested scope, creating it on
// first use. The working-tier cap follows the scope's short-term cap.
func (s *Service) Manager(scope Scope, sessionID, agentName string) (*Store, error) {
	switch scope {
	case ScopeGlobal:
		return s.global, nil

	case ScopeSession:
		if sessionID == "" {
			return nil, errSessionIDRequired
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		store, ok := s.sessions[sessionID]
		if !ok {
			store = NewStore(StoreConfig{
				MaxShortTerm: s.config.SessionMaxShortTerm,
				MaxLongTerm:  s.config.SessionMaxLongTerm,
				MaxWorking:   s.config.SessionMaxShortTerm,
			})
			s.sessions[sessionID] = store
			s.logger.Debug(context.Background(), "session memory store created", "session_id", sessionID)
		}
		return store, nil

	case ScopeAgent:
		if sessionID == "" {
			return nil, errSessionIDRequired
		}
		if agentName == "" {
			return nil, errAgentNameRequired
		}
		key := agentKey{sessionID: sessionID, agentName: agentName}
		s.mu.Lock()
		defer s.mu.Unlock()
		store, ok := s.agents[key]
		if !ok {
			store = NewStore(StoreConfig{
				MaxShortTerm: s.config.AgentMaxShortTerm,
				MaxLongTerm:  s.config.AgentMaxLongTerm,
				MaxWorking:   s.config.AgentMaxShortTerm,
			})
			s.agents[key] = store
			s.logger.Debug(context.Background(), "agent memory store created",
				"session_id", sessionID, "agent", agentName)
		}
		return store, nil
	}
	return nil, errors.New("memory: unknown scope " + string(scope))
}

// ClearSession drops the session-scoped store and every agent-scoped
// store belonging to the session. Global memory is untouched.
func (s *Service) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	for key := range s.agents {
		if key.sessionID == sessionID {
			delete(s.agents, key)
		}
	}
	s.logger.Info(context.Background(), "session memories cleared", "session_id", sessionID)
}

// ServiceStats summarizes the service across scopes.
type ServiceStats struct {
	Global           any      `json:"global_memory"`
	SessionCount     int      `json:"session_count"`
	AgentStoreCount  int      `json:"agent_memory_count"`
	ActiveSessionIDs []string `json:"sessions"`
}

// Stats returns a snapshot of the service's stores.
func (s *Service) Stats() ServiceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ServiceStats{
		Global:           s.global.Stats(),
		SessionCount:     len(s.sessions),
		AgentStoreCount:  len(s.agents),
		ActiveSessionIDs: ids,
	}
}

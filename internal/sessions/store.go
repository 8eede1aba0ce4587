package sessions

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/internal/observability"
)

// Store is an in-memory registry of live sessions keyed by id. Safe for
// concurrent use. Persistence is out of scope; a session exists only for
// the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewStore creates an empty session store.
func NewStore(logger *observability.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger.WithComponent("sessions"),
		metrics:  metrics,
	}
}

// GetOrCreate returns the session for id, creating it on first use.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s = New(id)
	st.sessions[id] = s
	if st.metrics != nil {
		st.metrics.ActiveSessions.Inc()
	}
	st.logger.Debug(context.Background(), "session created", "session_id", id)
	return s
}

// Get returns the session for id if it exists.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Remove tears down and forgets a session: the active turn's context is
// cancelled and all per-session state is dropped.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return
	}
	s.Teardown()
	if st.metrics != nil {
		st.metrics.ActiveSessions.Dec()
	}
	st.logger.Info(context.Background(), "session removed", "session_id", id)
}

// List returns the ids of all live sessions.
func (st *Store) List() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

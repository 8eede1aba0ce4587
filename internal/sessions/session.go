package sessions

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

// maxMessagesPerSession bounds history growth. When exceeded, the oldest
// non-system messages are dropped.
const maxMessagesPerSession = 1000

// Run is the handle for an in-flight turn. Cancel tears down the
// provider stream; Done closes when the turn goroutine has fully
// unwound, including its cleanup.
type Run struct {
	Cancel context.CancelFunc
	Done   chan struct{}
}

// Session holds the conversational state for one client conversation:
// message history, the latched cancel flag, the id of the assistant
// message currently being streamed, and the handle of the active turn.
//
// A session supports exactly one active turn at a time. Submitting a new
// turn while one is in flight cancels the old one first.
type Session struct {
	id string

	mu        sync.Mutex
	messages  []models.Message
	cancelled bool
	currentID string
	run       *Run
}

// New creates a detached session. Detached sessions are used for plan
// task delegation, where the executor needs a fresh history that is not
// registered in any store.
func New(id string) *Session {
	return &Session{id: id}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Messages returns a copy of the history.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Append adds a message to the history, trimming the oldest non-system
// entries once the cap is exceeded.
func (s *Session) Append(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if len(s.messages) > maxMessagesPerSession {
		if len(s.messages) > 0 && s.messages[0].Role == models.RoleSystem {
			s.messages = append(s.messages[:1], s.messages[2:]...)
		} else {
			s.messages = s.messages[1:]
		}
	}
}

// EnsureSystemPrompt inserts a system message at the head of the history
// if none is present yet. Agents inject their own prompt at turn start,
// so a session carries the prompt of whichever agent spoke first.
func (s *Session) EnsureSystemPrompt(prompt string) {
	if prompt == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 0 && s.messages[0].Role == models.RoleSystem {
		return
	}
	s.messages = append([]models.Message{models.SystemMessage(prompt)}, s.messages...)
}

// Len returns the current history length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// RequestCancel latches the cancel flag. The flag stays set until the
// executor observes it at a suspension point or a new turn resets it.
func (s *Session) RequestCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// ResetCancel clears the cancel flag. Called at turn start and during
// turn cleanup.
func (s *Session) ResetCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = false
}

// Cancelled reports whether cancellation has been requested.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// SetCurrentMessage records the id of the assistant message being
// streamed, so a cancellation arriving mid-turn can be correlated.
func (s *Session) SetCurrentMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentID = id
}

// CurrentMessage returns the id of the in-flight assistant message, or
// "" when no turn is active.
func (s *Session) CurrentMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// ClearTurnState resets the cancel flag and current message id. Runs in
// the executor's cleanup regardless of turn outcome.
func (s *Session) ClearTurnState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = false
	s.currentID = ""
}

// SetRun installs the handle for a newly started turn.
func (s *Session) SetRun(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = r
}

// ActiveRun returns the handle of the in-flight turn, or nil.
func (s *Session) ActiveRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// ClearRun drops the run handle once the turn goroutine exits.
func (s *Session) ClearRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = nil
}

// Interrupt latches the cancel flag and returns the handle of the
// in-flight turn so the caller can wait for it to unwind at the next
// suspension point. Returns nil when no turn is active. The turn is not
// force-killed; a tool already executing runs to completion.
func (s *Session) Interrupt() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil {
		s.cancelled = true
	}
	return s.run
}

// Teardown hard-cancels the active turn's context. Used when the session
// itself is being destroyed and cooperative unwinding is not worth
// waiting for.
func (s *Session) Teardown() {
	s.mu.Lock()
	run := s.run
	s.cancelled = true
	s.mu.Unlock()
	if run != nil && run.Cancel != nil {
		run.Cancel()
	}
}

package sessions

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

func newTestStore() *Store {
	logger := observability.NewLogger(observability.LogConfig{Level: "error", Output: io.Discard})
	return NewStore(logger, nil)
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	st := newTestStore()
	a := st.GetOrCreate("s1")
	b := st.GetOrCreate("s1")
	if a != b {
		t.Error("expected the same session instance for repeated ids")
	}
	if st.Count() != 1 {
		t.Errorf("count = %d, want 1", st.Count())
	}
}

func TestEnsureSystemPromptInsertsOnce(t *testing.T) {
	s := New("s1")
	s.Append(models.UserMessage("hi"))
	s.EnsureSystemPrompt("you are helpful")
	s.EnsureSystemPrompt("different prompt")

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem || msgs[0].Content != "you are helpful" {
		t.Errorf("head = %+v, want original system prompt", msgs[0])
	}
}

func TestHistoryCapPreservesSystemMessage(t *testing.T) {
	s := New("s1")
	s.EnsureSystemPrompt("prompt")
	for i := 0; i < maxMessagesPerSession+10; i++ {
		s.Append(models.UserMessage("m"))
	}
	msgs := s.Messages()
	if len(msgs) != maxMessagesPerSession {
		t.Errorf("len = %d, want %d", len(msgs), maxMessagesPerSession)
	}
	if msgs[0].Role != models.RoleSystem {
		t.Error("system message evicted by history cap")
	}
}

func TestCancelFlagLatchesUntilCleared(t *testing.T) {
	s := New("s1")
	if s.Cancelled() {
		t.Fatal("new session should not be cancelled")
	}
	s.RequestCancel()
	if !s.Cancelled() {
		t.Fatal("flag should latch")
	}
	// Repeated reads do not consume the flag.
	if !s.Cancelled() {
		t.Fatal("flag should stay latched")
	}
	s.ClearTurnState()
	if s.Cancelled() {
		t.Fatal("cleanup should reset the flag")
	}
}

func TestClearTurnStateResetsCurrentMessage(t *testing.T) {
	s := New("s1")
	s.SetCurrentMessage("msg_ab12cd34")
	s.ClearTurnState()
	if got := s.CurrentMessage(); got != "" {
		t.Errorf("current message = %q, want empty", got)
	}
}

func TestInterruptOnlyWithActiveRun(t *testing.T) {
	s := New("s1")
	if run := s.Interrupt(); run != nil {
		t.Error("interrupt with no active run should return nil")
	}
	if s.Cancelled() {
		t.Error("interrupt with no active run should not latch the flag")
	}

	done := make(chan struct{})
	s.SetRun(&Run{Done: done})
	if run := s.Interrupt(); run == nil {
		t.Error("interrupt should return the active run")
	}
	if !s.Cancelled() {
		t.Error("interrupt should latch the cancel flag")
	}
}

func TestRemoveCancelsActiveRun(t *testing.T) {
	st := newTestStore()
	s := st.GetOrCreate("s1")

	ctx, cancel := context.WithCancel(context.Background())
	s.SetRun(&Run{Cancel: cancel, Done: make(chan struct{})})
	st.Remove("s1")

	select {
	case <-ctx.Done():
	default:
		t.Error("teardown should cancel the run context")
	}
	if _, ok := st.Get("s1"); ok {
		t.Error("session should be gone after Remove")
	}
}

func TestConcurrentAppend(t *testing.T) {
	s := New("s1")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(models.UserMessage("x"))
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Errorf("len = %d, want 50", s.Len())
	}
}

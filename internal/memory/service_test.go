package memory

import (
	"io"
	"strings"
	"testing"

	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

func newTestService() *Service {
	logger := observability.NewLogger(observability.LogConfig{Level: "error", Output: io.Discard})
	return NewService(ServiceConfig{}, logger, nil)
}

func TestManagerScopesAreIsolated(t *testing.T) {
	svc := newTestService()

	sessA, _ := svc.Manager(ScopeSession, "sess-a", "")
	sessB, _ := svc.Manager(ScopeSession, "sess-b", "")
	agentA, _ := svc.Manager(ScopeAgent, "sess-a", "helper")

	sessA.Add("only in session a", models.MemoryShortTerm, models.ImportanceMedium, nil, nil)
	if sessB.Len() != 0 || agentA.Len() != 0 || svc.Global().Len() != 0 {
		t.Error("memory leaked across scopes")
	}
}

func TestManagerReturnsSameStoreForSameKey(t *testing.T) {
	svc := newTestService()
	a, _ := svc.Manager(ScopeSession, "s1", "")
	b, _ := svc.Manager(ScopeSession, "s1", "ignored")
	if a != b {
		t.Error("same session should map to one store")
	}

	x, _ := svc.Manager(ScopeAgent, "s1", "helper")
	y, _ := svc.Manager(ScopeAgent, "s1", "other")
	if x == y {
		t.Error("different agents should get distinct stores")
	}
}

func TestManagerValidation(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Manager(ScopeSession, "", ""); err == nil {
		t.Error("session scope without session id should fail")
	}
	if _, err := svc.Manager(ScopeAgent, "s1", ""); err == nil {
		t.Error("agent scope without agent name should fail")
	}
	if _, err := svc.Manager(Scope("nonsense"), "s1", "a"); err == nil {
		t.Error("unknown scope should fail")
	}
}

func TestClearSessionDropsSessionAndAgentStores(t *testing.T) {
	svc := newTestService()

	sess, _ := svc.Manager(ScopeSession, "s1", "")
	agent, _ := svc.Manager(ScopeAgent, "s1", "helper")
	other, _ := svc.Manager(ScopeSession, "s2", "")
	sess.Add("a", models.MemoryShortTerm, models.ImportanceMedium, nil, nil)
	agent.Add("b", models.MemoryWorking, models.ImportanceLow, nil, nil)
	other.Add("c", models.MemoryShortTerm, models.ImportanceMedium, nil, nil)
	svc.Global().Add("d", models.MemoryLongTerm, models.ImportanceHigh, nil, nil)

	svc.ClearSession("s1")

	fresh, _ := svc.Manager(ScopeSession, "s1", "")
	if fresh.Len() != 0 {
		t.Error("session store should be fresh after clear")
	}
	freshAgent, _ := svc.Manager(ScopeAgent, "s1", "helper")
	if freshAgent.Len() != 0 {
		t.Error("agent store should be fresh after clear")
	}

	stillThere, _ := svc.Manager(ScopeSession, "s2", "")
	if stillThere.Len() != 1 {
		t.Error("other sessions must be untouched")
	}
	if svc.Global().Len() != 1 {
		t.Error("global memory must be untouched")
	}
}

func TestServiceStats(t *testing.T) {
	svc := newTestService()
	_, _ = svc.Manager(ScopeSession, "s1", "")
	_, _ = svc.Manager(ScopeAgent, "s1", "helper")
	_, _ = svc.Manager(ScopeAgent, "s1", "other")

	stats := svc.Stats()
	if stats.SessionCount != 1 || stats.AgentStoreCount != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHooksRecordAndRecall(t *testing.T) {
	svc := newTestService()
	hooks := NewHooks(svc)

	hooks.RecordExchange("s1", "general", "my favorite color is teal", "noted")
	hooks.RecordToolCall("s1", "general", "get_weather", "sunny")

	store, _ := svc.Manager(ScopeSession, "s1", "")
	if got := len(store.ByType(models.MemoryShortTerm)); got != 1 {
		t.Errorf("short term = %d, want 1", got)
	}
	if got := len(store.ByType(models.MemoryWorking)); got != 1 {
		t.Errorf("working = %d, want 1", got)
	}

	block := hooks.ContextFor("s1", "general", "what is my favorite color")
	if !strings.Contains(block, "teal") {
		t.Errorf("context = %q, want recall of the exchange", block)
	}

	// Unrelated sessions recall nothing session-scoped.
	if got := hooks.ContextFor("s2", "general", "what is my favorite color"); got != "" {
		t.Errorf("cross-session context = %q, want empty", got)
	}
}

func TestHooksFallBackToGlobal(t *testing.T) {
	svc := newTestService()
	hooks := NewHooks(svc)
	svc.Global().Add("the deploy password hint is stored in vault", models.MemoryLongTerm, models.ImportanceHigh, nil, nil)

	block := hooks.ContextFor("s1", "general", "where is the deploy hint")
	if !strings.Contains(block, "vault") {
		t.Errorf("context = %q, want global fallback", block)
	}
}

func TestHooksAddLongTerm(t *testing.T) {
	svc := newTestService()
	hooks := NewHooks(svc)

	mem, err := hooks.AddLongTerm("s1", "user is allergic to peanuts", models.ImportanceCritical, []string{"health"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store, _ := svc.Manager(ScopeSession, "s1", "")
	got, ok := store.Get(mem.ID)
	if !ok || got.Type != models.MemoryLongTerm || got.Importance != models.ImportanceCritical {
		t.Errorf("stored = %+v", got)
	}
}

package planning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/cadenza-ai/cadenza/internal/agent"
	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/internal/sessions"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

// textProvider streams a single canned completion, split into a couple
// of chunks to exercise buffering.
type textProvider struct {
	text string
	err  error
}

func (p *textProvider) Name() string { return "text" }

func (p *textProvider) Complete(_ context.Context, _ *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan *agent.CompletionChunk, 3)
	half := len(p.text) / 2
	ch <- &agent.CompletionChunk{Text: p.text[:half]}
	ch <- &agent.CompletionChunk{Text: p.text[half:]}
	ch <- &agent.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

// fakeExecutor stands in for the agent tasks are delegated to. It emits
// one content delta per run and records what it was asked to do.
type fakeExecutor struct {
	name    string
	outcome agent.Outcome
	failOn  map[string]error

	mu         sync.Mutex
	inputs     []string
	sessionIDs []string
}

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) Info() agent.Info {
	return agent.Info{Name: f.name, Type: "fake"}
}

func (f *fakeExecutor) Run(ctx context.Context, sink agent.Sink, sess *sessions.Session, input string) (agent.Outcome, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.sessionIDs = append(f.sessionIDs, sess.ID())
	f.mu.Unlock()

	if err, ok := f.failOn[input]; ok {
		return agent.OutcomeError, err
	}

	id := agent.NewMessageID()
	sink.Send(ctx, models.ContentDelta(id, "did: "+input))
	outcome := f.outcome
	if outcome == "" {
		outcome = agent.OutcomeCompleted
	}
	return outcome, nil
}

type eventSink struct {
	mu     sync.Mutex
	events []*models.Event
	onSend func(ev *models.Event)
}

func (s *eventSink) Send(_ context.Context, ev *models.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	fn := s.onSend
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
	return nil
}

func (s *eventSink) all() []*models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *eventSink) ofType(t models.EventType) []*models.Event {
	var out []*models.Event
	for _, ev := range s.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func plannerLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Output: io.Discard})
}

func newTestPlanner(planText string, exec *fakeExecutor) (*Planner, *agent.Manager) {
	manager := agent.NewManager(plannerLogger())
	if exec != nil {
		manager.Register(exec, true)
	}
	p := NewPlanner(Config{ExecutorAgent: "worker"},
		&textProvider{text: planText}, manager, plannerLogger(), nil)
	return p, manager
}

func TestPlannerHappyPath(t *testing.T) {
	plan := `{
	  "tasks": [
	    {"id": "task1", "title": "First", "description": "step one", "priority": "high"},
	    {"id": "task2", "title": "Second", "description": "step two", "priority": "medium", "dependencies": ["task1"]}
	  ]
	}`
	exec := &fakeExecutor{name: "worker"}
	p, _ := newTestPlanner(plan, exec)

	sess := sessions.New("sess-1")
	sink := &eventSink{}
	outcome, err := p.Run(context.Background(), sink, sess, "do the thing")
	if err != nil || outcome != agent.OutcomeCompleted {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}

	ready := sink.ofType(models.EventPlanReady)
	if len(ready) != 1 || len(ready[0].Tasks) != 2 {
		t.Fatalf("plan_ready = %+v", ready)
	}
	if sink.all()[0].Type != models.EventTurnStart {
		t.Error("first event must be turn_start")
	}

	statuses := sink.ofType(models.EventTaskStatus)
	wantStatus := []struct {
		id     string
		status string
	}{
		{"task1", "in_progress"},
		{"task1", "completed"},
		{"task2", "in_progress"},
		{"task2", "completed"},
	}
	if len(statuses) != len(wantStatus) {
		t.Fatalf("got %d status events, want %d", len(statuses), len(wantStatus))
	}
	for i, want := range wantStatus {
		if statuses[i].TaskID != want.id || statuses[i].Status != want.status {
			t.Errorf("status[%d] = %s/%s, want %s/%s",
				i, statuses[i].TaskID, statuses[i].Status, want.id, want.status)
		}
	}
	if statuses[1].Result != "did: step one" {
		t.Errorf("task1 result = %q", statuses[1].Result)
	}

	summaries := sink.ofType(models.EventPlanSummary)
	if len(summaries) != 1 || summaries[0].Progress.Percent != 100 {
		t.Errorf("plan_summary = %+v", summaries)
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.inputs) != 2 || exec.inputs[0] != "step one" || exec.inputs[1] != "step two" {
		t.Errorf("delegated inputs = %v", exec.inputs)
	}
	for _, id := range exec.sessionIDs {
		if id == sess.ID() {
			t.Error("delegated tasks must run on a detached session")
		}
	}

	ts, ok := p.Plan(sess.ID())
	if !ok || ts.Progress().Completed != 2 {
		t.Errorf("stored plan missing or incomplete")
	}
}

func TestPlannerMalformedPlan(t *testing.T) {
	p, _ := newTestPlanner("I could not produce a plan, sorry.", &fakeExecutor{name: "worker"})

	sess := sessions.New("sess-bad")
	sink := &eventSink{}
	outcome, err := p.Run(context.Background(), sink, sess, "impossible")
	if outcome != agent.OutcomeError || err == nil {
		t.Fatalf("outcome = %v, err = %v, want error outcome", outcome, err)
	}

	types := []models.EventType{}
	for _, ev := range sink.all() {
		types = append(types, ev.Type)
	}
	want := []models.EventType{models.EventTurnStart, models.EventError, models.EventTurnEnd}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestPlannerProviderFailure(t *testing.T) {
	manager := agent.NewManager(plannerLogger())
	manager.Register(&fakeExecutor{name: "worker"}, true)
	p := NewPlanner(Config{ExecutorAgent: "worker"},
		&textProvider{err: errors.New("connection refused")}, manager, plannerLogger(), nil)

	sink := &eventSink{}
	outcome, err := p.Run(context.Background(), sink, sessions.New("sess-err"), "anything")
	if outcome != agent.OutcomeError || err == nil {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if len(sink.ofType(models.EventTurnEnd)) != 1 {
		t.Error("turn_end must still close the turn on provider failure")
	}
}

func TestPlannerStallsOnUnsatisfiableDependency(t *testing.T) {
	plan := `{"tasks": [
	  {"id": "task1", "title": "Blocked", "description": "waits forever", "priority": "high", "dependencies": ["ghost"]}
	]}`
	exec := &fakeExecutor{name: "worker"}
	p, _ := newTestPlanner(plan, exec)

	sess := sessions.New("sess-stall")
	sink := &eventSink{}
	outcome, err := p.Run(context.Background(), sink, sess, "blocked work")
	if err != nil || outcome != agent.OutcomeCompleted {
		t.Fatalf("a stalled plan is not an error: outcome = %v, err = %v", outcome, err)
	}

	if len(exec.inputs) != 0 {
		t.Error("nothing should have been delegated")
	}
	ts, _ := p.Plan(sess.ID())
	task, _ := ts.Get("task1")
	if task.Status != models.TaskPending {
		t.Errorf("blocked task status = %s, want pending", task.Status)
	}
	if len(sink.ofType(models.EventPlanProgress)) == 0 {
		t.Error("stall should still report progress")
	}
}

func TestPlannerTaskFailureDoesNotStopIndependentTasks(t *testing.T) {
	plan := `{"tasks": [
	  {"id": "task1", "title": "Breaks", "description": "will fail", "priority": "high"},
	  {"id": "task2", "title": "Fine", "description": "will pass", "priority": "low"}
	]}`
	exec := &fakeExecutor{
		name:   "worker",
		failOn: map[string]error{"will fail": errors.New("tool exploded")},
	}
	p, _ := newTestPlanner(plan, exec)

	sess := sessions.New("sess-fail")
	sink := &eventSink{}
	outcome, err := p.Run(context.Background(), sink, sess, "mixed")
	if err != nil || outcome != agent.OutcomeCompleted {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}

	ts, _ := p.Plan(sess.ID())
	t1, _ := ts.Get("task1")
	t2, _ := ts.Get("task2")
	if t1.Status != models.TaskFailed || t1.Error == "" {
		t.Errorf("task1 = %+v, want failed with error", t1)
	}
	if t2.Status != models.TaskCompleted {
		t.Errorf("task2 = %+v, want completed despite task1", t2)
	}

	var failedEvent *models.Event
	for _, ev := range sink.ofType(models.EventTaskStatus) {
		if ev.Status == string(models.TaskFailed) {
			failedEvent = ev
		}
	}
	if failedEvent == nil || failedEvent.Message == "" {
		t.Error("failed task should surface its error message")
	}
}

func TestPlannerExecutesByPriority(t *testing.T) {
	plan := `{"tasks": [
	  {"id": "t-low", "title": "Low", "description": "low work", "priority": "low"},
	  {"id": "t-crit", "title": "Critical", "description": "critical work", "priority": "critical"},
	  {"id": "t-high", "title": "High", "description": "high work", "priority": "high"}
	]}`
	exec := &fakeExecutor{name: "worker"}
	p, _ := newTestPlanner(plan, exec)

	_, err := p.Run(context.Background(), &eventSink{}, sessions.New("sess-prio"), "ordered")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"critical work", "high work", "low work"}
	if len(exec.inputs) != 3 {
		t.Fatalf("inputs = %v", exec.inputs)
	}
	for i, in := range want {
		if exec.inputs[i] != in {
			t.Errorf("inputs[%d] = %q, want %q", i, exec.inputs[i], in)
		}
	}
}

func TestPlannerCancelStopsBeforeNextTask(t *testing.T) {
	plan := `{"tasks": [
	  {"id": "task1", "title": "First", "description": "step one", "priority": "high"},
	  {"id": "task2", "title": "Second", "description": "step two", "priority": "low"}
	]}`
	exec := &fakeExecutor{name: "worker"}
	p, _ := newTestPlanner(plan, exec)

	sess := sessions.New("sess-cancel")
	sink := &eventSink{}
	sink.onSend = func(ev *models.Event) {
		if ev.Type == models.EventTaskStatus && ev.Status == string(models.TaskCompleted) {
			sess.RequestCancel()
		}
	}

	outcome, err := p.Run(context.Background(), sink, sess, "interrupted")
	if err != nil || outcome != agent.OutcomeCancelled {
		t.Fatalf("outcome = %v, err = %v, want cancelled", outcome, err)
	}
	if len(exec.inputs) != 1 {
		t.Errorf("delegated %d tasks, want the in-flight one only", len(exec.inputs))
	}
	if len(sink.ofType(models.EventPlanSummary)) != 0 {
		t.Error("a cancelled plan run must not emit a summary")
	}
}

func TestPlannerPropagatesDelegatedCancellation(t *testing.T) {
	plan := `{"tasks": [
	  {"id": "task1", "title": "First", "description": "step one", "priority": "high"},
	  {"id": "task2", "title": "Second", "description": "step two", "priority": "low"}
	]}`
	exec := &fakeExecutor{name: "worker", outcome: agent.OutcomeCancelled}
	p, _ := newTestPlanner(plan, exec)

	sess := sessions.New("sess-deleg-cancel")
	outcome, err := p.Run(context.Background(), &eventSink{}, sess, "stop midway")
	if err != nil || outcome != agent.OutcomeCancelled {
		t.Fatalf("outcome = %v, err = %v, want cancelled", outcome, err)
	}
	if len(exec.inputs) != 1 {
		t.Errorf("delegated %d tasks, want 1", len(exec.inputs))
	}
}

func TestPlannerUnknownExecutorFailsTask(t *testing.T) {
	plan := `{"tasks": [
	  {"id": "task1", "title": "Orphan", "description": "nobody runs this", "priority": "medium"}
	]}`
	p, _ := newTestPlanner(plan, nil)

	sess := sessions.New("sess-orphan")
	outcome, err := p.Run(context.Background(), &eventSink{}, sess, "orphaned")
	if err != nil || outcome != agent.OutcomeCompleted {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	ts, _ := p.Plan(sess.ID())
	task, _ := ts.Get("task1")
	if task.Status != models.TaskFailed {
		t.Errorf("status = %s, want failed when no executor exists", task.Status)
	}
}

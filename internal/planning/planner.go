package planning

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cadenza-ai/cadenza/internal/agent"
	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/internal/sessions"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

// DefaultMaxTasks bounds how many tasks one plan run will execute.
const DefaultMaxTasks = 20

const planPromptTemplate = `Break the following request into concrete subtasks and return them as a JSON task list.

Request:
%s

Requirements:
1. Return strictly JSON, with no explanations, Markdown fences, or surrounding prose.
2. The object must contain a "tasks" array. Each task has:
   - id: short unique string (task1, task2, ...)
   - title: concise task title
   - description: concrete, executable instructions
   - priority: one of low, medium, high, critical
   - dependencies: array of task ids this task depends on ([] if none)
3. Keep descriptions specific enough for another agent to execute without further context.

Return the JSON object now:`

// Config configures a Planner.
type Config struct {
	Name string
	// Model used for plan generation; empty uses the provider default.
	Model string
	// MaxTasks bounds the execution loop. Defaults to DefaultMaxTasks.
	MaxTasks int
	// ExecutorAgent is the agent tasks are delegated to when a task
	// does not name one.
	ExecutorAgent string
}

// Planner decomposes a request into a task plan and drives it to
// completion by delegating each task to an executing agent. It
// implements agent.Handler, so it registers with the manager like any
// other agent.
//
// Execution is sequential: one task at a time, picked from the ready
// set by priority. When pending tasks remain but none are ready (a
// dependency failed or names an unknown id) the run stops without
// error and the tasks stay pending.
type Planner struct {
	config   Config
	provider agent.LLMProvider
	manager  *agent.Manager
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu    sync.Mutex
	plans map[string]*TaskSet
}

// NewPlanner creates a planning agent. metrics may be nil.
func NewPlanner(config Config, provider agent.LLMProvider, manager *agent.Manager, logger *observability.Logger, metrics *observability.Metrics) *Planner {
	if config.Name == "" {
		config.Name = "planner"
	}
	if config.MaxTasks <= 0 {
		config.MaxTasks = DefaultMaxTasks
	}
	return &Planner{
		config:   config,
		provider: provider,
		manager:  manager,
		logger:   logger.WithComponent("planner"),
		metrics:  metrics,
		plans:    make(map[string]*TaskSet),
	}
}

// Name implements agent.Handler.
func (p *Planner) Name() string { return p.config.Name }

// Info implements agent.Handler.
func (p *Planner) Info() agent.Info {
	return agent.Info{
		Name:          p.config.Name,
		Type:          "planning",
		Description:   "Decomposes requests into task plans and delegates execution",
		MaxIterations: p.config.MaxTasks,
	}
}

// Plan returns the task set of the session's most recent plan run.
func (p *Planner) Plan(sessionID string) (*TaskSet, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.plans[sessionID]
	return ts, ok
}

// Run implements agent.Handler: generate a plan for the input, announce
// it, execute it task by task, and summarize.
func (p *Planner) Run(ctx context.Context, sink agent.Sink, sess *sessions.Session, input string) (agent.Outcome, error) {
	ctx = observability.WithSessionID(ctx, sess.ID())
	ctx = observability.WithAgent(ctx, p.config.Name)

	sess.ResetCancel()
	messageID := agent.NewMessageID()
	sess.SetCurrentMessage(messageID)

	endEmitted := false
	defer func() {
		if !endEmitted {
			p.send(ctx, sink, models.TurnEnd(messageID))
		}
		sess.ClearTurnState()
	}()

	sess.Append(models.UserMessage(fmt.Sprintf(planPromptTemplate, input)))
	p.send(ctx, sink, models.TurnStart(messageID))

	raw, outcome, err := p.generatePlanText(ctx, sess)
	if outcome != agent.OutcomeCompleted {
		if err != nil {
			p.send(ctx, sink, models.ErrorEvent("task planning failed: "+err.Error()))
		}
		return outcome, err
	}
	sess.Append(models.AssistantMessage(raw))

	tasks, err := ParsePlan(raw)
	if err != nil {
		p.logger.Error(ctx, "plan parse failed", "error", err)
		p.recordError("plan_parse")
		p.send(ctx, sink, models.ErrorEvent("task planning failed: "+err.Error()))
		return agent.OutcomeError, err
	}

	ts := NewTaskSet()
	for _, task := range tasks {
		ts.Add(task)
	}
	p.mu.Lock()
	p.plans[sess.ID()] = ts
	p.mu.Unlock()

	p.logger.Info(ctx, "plan generated", "tasks", ts.Len())
	p.send(ctx, sink, &models.Event{
		Type:      models.EventPlanReady,
		MessageID: messageID,
		Tasks:     ts.All(),
		Progress:  progressPtr(ts),
	})
	p.send(ctx, sink, models.TurnEnd(messageID))
	endEmitted = true

	outcome = p.executeAll(ctx, sink, sess, ts)
	if outcome == agent.OutcomeCancelled {
		return outcome, nil
	}

	p.sendSummary(ctx, sink, ts)
	return agent.OutcomeCompleted, nil
}

// generatePlanText buffers the plan completion without forwarding
// deltas; clients see the plan as a plan_ready event, not as streamed
// JSON.
func (p *Planner) generatePlanText(ctx context.Context, sess *sessions.Session) (string, agent.Outcome, error) {
	chunks, err := p.provider.Complete(ctx, &agent.CompletionRequest{
		Model:    p.config.Model,
		Messages: sess.Messages(),
	})
	if err != nil {
		p.recordError("plan_request")
		return "", agent.OutcomeError, err
	}

	var buf strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			p.recordError("plan_stream")
			return "", agent.OutcomeError, chunk.Err
		}
		if sess.Cancelled() {
			go drainChunks(chunks)
			return "", agent.OutcomeCancelled, nil
		}
		buf.WriteString(chunk.Text)
		if chunk.Done {
			break
		}
	}
	return buf.String(), agent.OutcomeCompleted, nil
}

func (p *Planner) executeAll(ctx context.Context, sink agent.Sink, sess *sessions.Session, ts *TaskSet) agent.Outcome {
	for iteration := 0; iteration < p.config.MaxTasks; iteration++ {
		if sess.Cancelled() {
			p.logger.Info(ctx, "plan execution cancelled", "iteration", iteration)
			return agent.OutcomeCancelled
		}

		ready := ts.Ready()
		if len(ready) == 0 {
			if ts.HasOpen() {
				// Unsatisfiable dependencies: stop quietly, leave the
				// remaining tasks pending.
				p.logger.Warn(ctx, "plan stalled, pending tasks are blocked",
					"progress", ts.Progress())
				p.send(ctx, sink, &models.Event{Type: models.EventPlanProgress, Progress: progressPtr(ts)})
			}
			return agent.OutcomeCompleted
		}

		task := ready[0]
		p.runTask(ctx, sink, sess, ts, task)
		p.send(ctx, sink, &models.Event{Type: models.EventPlanProgress, Progress: progressPtr(ts)})
	}
	p.logger.Warn(ctx, "plan execution hit the task cap", "max_tasks", p.config.MaxTasks)
	return agent.OutcomeCompleted
}

func (p *Planner) runTask(ctx context.Context, sink agent.Sink, sess *sessions.Session, ts *TaskSet, task models.Task) {
	p.logger.Info(ctx, "task started", "task_id", task.ID, "title", task.Title)
	ts.UpdateStatus(task.ID, models.TaskInProgress, "", "")
	p.send(ctx, sink, &models.Event{
		Type:   models.EventTaskStatus,
		TaskID: task.ID,
		Status: string(models.TaskInProgress),
	})

	result, err := p.delegate(ctx, sink, sess, task)
	if err != nil {
		p.logger.Error(ctx, "task failed", "task_id", task.ID, "error", err)
		ts.UpdateStatus(task.ID, models.TaskFailed, "", err.Error())
		p.recordTask(models.TaskFailed)
		p.send(ctx, sink, &models.Event{
			Type:    models.EventTaskStatus,
			TaskID:  task.ID,
			Status:  string(models.TaskFailed),
			Message: err.Error(),
		})
		return
	}

	ts.UpdateStatus(task.ID, models.TaskCompleted, result, "")
	p.recordTask(models.TaskCompleted)
	p.send(ctx, sink, &models.Event{
		Type:   models.EventTaskStatus,
		TaskID: task.ID,
		Status: string(models.TaskCompleted),
		Result: result,
	})
}

// delegate hands a task to its executor agent. The agent runs on a
// fresh detached session so task traffic never pollutes the main
// conversation, and its streamed output doubles as the task result.
func (p *Planner) delegate(ctx context.Context, sink agent.Sink, sess *sessions.Session, task models.Task) (string, error) {
	name := task.AssignedTo
	if name == "" {
		name = p.config.ExecutorAgent
	}
	handler, ok := p.manager.Get(name)
	if !ok {
		return "", fmt.Errorf("no agent %q to execute task %q", name, task.Title)
	}

	taskSess := sessions.New(sess.ID() + "/task/" + task.ID)
	capture := newCaptureSink(sink)

	outcome, err := handler.Run(ctx, capture, taskSess, task.Description)
	if err != nil {
		return "", err
	}
	if outcome == agent.OutcomeCancelled {
		// Propagate into the parent session so the driver loop stops.
		sess.RequestCancel()
	}

	result := capture.Text()
	if result == "" {
		result = "Task completed"
	}
	return result, nil
}

func (p *Planner) sendSummary(ctx context.Context, sink agent.Sink, ts *TaskSet) {
	progress := ts.Progress()

	p.send(ctx, sink, &models.Event{
		Type:     models.EventPlanSummary,
		Tasks:    ts.All(),
		Progress: &progress,
	})

	summaryID := agent.NewMessageID()
	text := fmt.Sprintf("Plan execution finished.\n\n- Total tasks: %d\n- Completed: %d\n- Failed: %d\n",
		progress.Total, progress.Completed, progress.Failed)

	p.send(ctx, sink, models.TurnStart(summaryID))
	p.send(ctx, sink, models.ContentDelta(summaryID, text))
	p.send(ctx, sink, models.TurnEnd(summaryID))
}

func (p *Planner) send(ctx context.Context, sink agent.Sink, ev *models.Event) {
	if err := sink.Send(ctx, ev); err != nil {
		p.logger.Debug(ctx, "event send failed", "type", string(ev.Type), "error", err)
	}
}

func (p *Planner) recordTask(status models.TaskStatus) {
	if p.metrics != nil {
		p.metrics.RecordPlanTask(string(status))
	}
}

func (p *Planner) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError("planner", kind)
	}
}

func progressPtr(ts *TaskSet) *models.Progress {
	p := ts.Progress()
	return &p
}

func drainChunks(ch <-chan *agent.CompletionChunk) {
	for range ch {
	}
}

package planning

import (
	"sort"
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

// TaskSet holds one plan's tasks with their dependency graph. Safe for
// concurrent use. Insertion order is preserved and used as the
// tie-break when tasks share a priority.
type TaskSet struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	order []string
}

// NewTaskSet creates an empty task set.
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[string]*models.Task)}
}

// Add inserts a task. A task reusing an existing id replaces it in
// place and keeps the original insertion position.
func (ts *TaskSet) Add(task models.Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if _, exists := ts.tasks[task.ID]; !exists {
		ts.order = append(ts.order, task.ID)
	}
	ts.tasks[task.ID] = &task
}

// Get returns a task by id.
func (ts *TaskSet) Get(id string) (models.Task, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

// All returns the tasks in insertion order.
func (ts *TaskSet) All() []models.Task {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]models.Task, 0, len(ts.order))
	for _, id := range ts.order {
		out = append(out, *ts.tasks[id])
	}
	return out
}

// UpdateStatus moves a task to a new status, recording the result or
// error for terminal states. Returns false for unknown ids.
func (ts *TaskSet) UpdateStatus(id string, status models.TaskStatus, result, errText string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tasks[id]
	if !ok {
		return false
	}
	t.Status = status
	if result != "" {
		t.Result = result
	}
	if errText != "" {
		t.Error = errText
	}
	return true
}

// Ready returns the tasks eligible to run: pending, with every
// dependency completed. A dependency on an unknown id never satisfies,
// which leaves the task blocked. Ordering is priority descending
// (critical first), stable by insertion order within a priority.
func (ts *TaskSet) Ready() []models.Task {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	var ready []models.Task
	for _, id := range ts.order {
		t := ts.tasks[id]
		if t.Status != models.TaskPending {
			continue
		}
		if ts.depsCompletedLocked(t) {
			ready = append(ready, *t)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority.Rank() > ready[j].Priority.Rank()
	})
	return ready
}

func (ts *TaskSet) depsCompletedLocked(t *models.Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := ts.tasks[dep]
		if !ok || d.Status != models.TaskCompleted {
			return false
		}
	}
	return true
}

// HasOpen reports whether any task is still pending or in progress.
func (ts *TaskSet) HasOpen() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, t := range ts.tasks {
		if t.Status == models.TaskPending || t.Status == models.TaskInProgress {
			return true
		}
	}
	return false
}

// Len returns the number of tasks.
func (ts *TaskSet) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tasks)
}

// Progress summarizes completion. Percent is floor(100*completed/total)
// and zero for an empty set.
func (ts *TaskSet) Progress() models.Progress {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	p := models.Progress{Total: len(ts.tasks)}
	for _, t := range ts.tasks {
		switch t.Status {
		case models.TaskCompleted:
			p.Completed++
		case models.TaskInProgress:
			p.InProgress++
		case models.TaskPending:
			p.Pending++
		case models.TaskFailed:
			p.Failed++
		}
	}
	if p.Total > 0 {
		p.Percent = 100 * p.Completed / p.Total
	}
	return p
}

package planning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

var (
	// ErrNoJSON means no JSON object could be located in the model
	// output.
	ErrNoJSON = errors.New("planning: no JSON object in model output")

	// ErrNoTasks means a JSON object was found but yielded no usable
	// tasks.
	ErrNoTasks = errors.New("planning: no usable tasks in plan")
)

type rawPlan struct {
	Tasks []json.RawMessage `json:"tasks"`
}

type rawTask struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Dependencies []string `json:"dependencies"`
	AssignedTo   string   `json:"assigned_agent"`
}

// ParsePlan extracts a task list from raw model output. The parse is
// deliberately forgiving about the envelope: Markdown code fences are
// stripped and the outermost {...} span is used, so prose before or
// after the object is tolerated. Individual malformed task entries are
// skipped; only a fully unusable plan is an error.
func ParsePlan(raw string) ([]models.Task, error) {
	jsonStr, ok := extractJSON(raw)
	if !ok {
		return nil, ErrNoJSON
	}

	var plan rawPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return nil, fmt.Errorf("planning: parsing plan JSON: %w", err)
	}
	if plan.Tasks == nil {
		return nil, fmt.Errorf("%w: missing tasks field", ErrNoTasks)
	}

	var tasks []models.Task
	for _, entry := range plan.Tasks {
		var rt rawTask
		if err := json.Unmarshal(entry, &rt); err != nil {
			continue
		}
		if rt.ID == "" || rt.Title == "" || rt.Description == "" {
			continue
		}
		priority := models.TaskPriority(rt.Priority)
		if rt.Priority == "" {
			priority = models.PriorityMedium
		} else if !priority.Valid() {
			continue
		}
		tasks = append(tasks, models.Task{
			ID:           rt.ID,
			Title:        rt.Title,
			Description:  rt.Description,
			Priority:     priority,
			Status:       models.TaskPending,
			Dependencies: rt.Dependencies,
			AssignedTo:   rt.AssignedTo,
		})
	}

	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}
	return tasks, nil
}

// extractJSON strips code fences and returns the outermost {...} span.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

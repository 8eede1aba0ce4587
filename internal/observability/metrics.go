package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the orchestration layer.
// Register once at startup; the collectors go to the default registry and
// are served by the gateway's /metrics endpoint.
type Metrics struct {
	// TurnCounter counts completed turns.
	// Labels: agent, outcome (completed|cancelled|truncated|error)
	TurnCounter *prometheus.CounterVec

	// TurnIterations observes how many model round-trips a turn took.
	// Labels: agent
	TurnIterations *prometheus.HistogramVec

	// LLMRequestDuration measures provider call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider calls.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// MemoryCounter counts stored memories.
	// Labels: scope (global|session|agent), type
	MemoryCounter *prometheus.CounterVec

	// PlanTaskCounter counts planned tasks reaching a terminal status.
	// Labels: status (completed|failed|skipped)
	PlanTaskCounter *prometheus.CounterVec

	// ActiveSessions gauges sessions with live state.
	ActiveSessions prometheus.Gauge

	// ErrorCounter tracks errors by component and type.
	// Labels: component (executor|planner|gateway|provider), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all instruments. Call once.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadenza_turns_total",
				Help: "Total turns by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),

		TurnIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadenza_turn_iterations",
				Help:    "Model round-trips per turn",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"agent"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadenza_llm_request_duration_seconds",
				Help:    "Duration of streaming completion requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadenza_llm_requests_total",
				Help: "Total completion requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadenza_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadenza_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		MemoryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadenza_memories_total",
				Help: "Total memories stored by scope and tier",
			},
			[]string{"scope", "type"},
		),

		PlanTaskCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadenza_plan_tasks_total",
				Help: "Total planned tasks by terminal status",
			},
			[]string{"status"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cadenza_active_sessions",
				Help: "Current number of sessions with live state",
			},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadenza_errors_total",
				Help: "Total errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordTurn records the outcome and iteration count of a finished turn.
func (m *Metrics) RecordTurn(agent, outcome string, iterations int) {
	m.TurnCounter.WithLabelValues(agent, outcome).Inc()
	m.TurnIterations.WithLabelValues(agent).Observe(float64(iterations))
}

// RecordLLMRequest records one provider call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordToolExecution records one tool invocation.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordMemory records one stored memory.
func (m *Metrics) RecordMemory(scope, memType string) {
	m.MemoryCounter.WithLabelValues(scope, memType).Inc()
}

// RecordPlanTask records a task reaching a terminal status.
func (m *Metrics) RecordPlanTask(status string) {
	m.PlanTaskCounter.WithLabelValues(status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

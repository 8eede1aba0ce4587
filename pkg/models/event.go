package models

// EventType names a frame on the outbound event channel.
type EventType string

const (
	// Turn lifecycle.
	EventTurnStart    EventType = "turn_start"
	EventContentDelta EventType = "content_delta"
	EventTurnEnd      EventType = "turn_end"

	// Tool execution.
	EventToolCallsStart EventType = "tool_calls_start"
	EventToolCallResult EventType = "tool_call_result"

	// Planning.
	EventPlanReady    EventType = "plan_ready"
	EventTaskStatus   EventType = "task_status_update"
	EventPlanProgress EventType = "plan_progress"
	EventPlanSummary  EventType = "plan_summary"

	EventError EventType = "error"
)

// ToolCallInfo is the announcement payload for one requested tool call,
// sent in a tool_calls_start batch before any execution begins.
type ToolCallInfo struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Event is a single frame sent to the client. Only the fields relevant
// to the Type are populated.
type Event struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"message_id,omitempty"`

	// content_delta payload.
	Content string `json:"content,omitempty"`

	// Tool events.
	Tools      []ToolCallInfo `json:"tools,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolResult string         `json:"tool_result,omitempty"`

	// Planning events.
	Tasks    []Task    `json:"tasks,omitempty"`
	TaskID   string    `json:"task_id,omitempty"`
	Status   string    `json:"status,omitempty"`
	Result   string    `json:"result,omitempty"`
	Progress *Progress `json:"progress,omitempty"`

	// Error payload.
	Message string `json:"message,omitempty"`
}

// TurnStart builds the frame opening an assistant message stream.
func TurnStart(messageID string) *Event {
	return &Event{Type: EventTurnStart, MessageID: messageID}
}

// ContentDelta builds a streamed text fragment frame.
func ContentDelta(messageID, content string) *Event {
	return &Event{Type: EventContentDelta, MessageID: messageID, Content: content}
}

// TurnEnd builds the frame closing an assistant message stream.
func TurnEnd(messageID string) *Event {
	return &Event{Type: EventTurnEnd, MessageID: messageID}
}

// ErrorEvent builds a terminal error frame.
func ErrorEvent(message string) *Event {
	return &Event{Type: EventError, Message: message}
}

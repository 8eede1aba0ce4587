package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/internal/sessions"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

// Outcome classifies how a turn ended.
type Outcome string

const (
	// OutcomeCompleted means the model produced a final text response.
	OutcomeCompleted Outcome = "completed"
	// OutcomeCancelled means a cancel request was observed at a
	// suspension point and the turn unwound cooperatively.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeTruncated means the iteration cap was hit while the model
	// was still requesting tools.
	OutcomeTruncated Outcome = "truncated"
	// OutcomeError means the provider or stream failed.
	OutcomeError Outcome = "error"
)

// Executor drives the iterative tool-calling loop for one turn.
//
// Each iteration makes a streaming completion request, forwards text
// deltas to the sink as they arrive, and accumulates any tool calls.
// If the model requested tools they are executed sequentially, their
// results appended to the history, and the loop continues with a fresh
// message id. A response without tool calls completes the turn.
//
// Cancellation is cooperative and checked at exactly three suspension
// points: before each iteration, between stream deltas, and before each
// tool dispatch. A tool already executing always runs to completion.
//
// Regardless of outcome the executor emits a final turn_end for the
// last active message id and clears the session's cancel flag and
// current message id.
type Executor struct {
	provider LLMProvider
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewExecutor creates a turn executor. metrics may be nil.
func NewExecutor(provider LLMProvider, logger *observability.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{
		provider: provider,
		logger:   logger.WithComponent("executor"),
		metrics:  metrics,
	}
}

// RunTurn processes one user input on the given session and streams the
// result to the sink. It blocks until the turn reaches a terminal
// outcome. The returned error is non-nil only for provider failures and
// iteration exhaustion; cancellation is a normal outcome.
func (e *Executor) RunTurn(ctx context.Context, sink Sink, sess *sessions.Session, ag *Agent, userInput string) (Outcome, error) {
	ctx = observability.WithSessionID(ctx, sess.ID())
	ctx = observability.WithAgent(ctx, ag.name)

	sess.EnsureSystemPrompt(ag.systemPrompt)

	input := userInput
	if ag.memory != nil {
		if block := ag.memory.ContextFor(sess.ID(), ag.name, userInput); block != "" {
			input = block + "\n\n" + userInput
		}
	}
	sess.Append(models.UserMessage(input))

	// A new turn starts with a clean slate: a cancel left over from a
	// previous turn must not kill this one.
	sess.ResetCancel()
	messageID := NewMessageID()
	sess.SetCurrentMessage(messageID)

	endEmitted := false
	defer func() {
		if !endEmitted {
			e.send(ctx, sink, models.TurnEnd(messageID))
		}
		sess.ClearTurnState()
	}()

	defs := ag.tools.Definitions()
	iterations := 0

	for iteration := 0; iteration < ag.maxIterations; iteration++ {
		iterations = iteration + 1

		if iteration > 0 {
			messageID = NewMessageID()
			sess.SetCurrentMessage(messageID)
			endEmitted = false
		}

		if sess.Cancelled() {
			e.logger.Info(ctx, "turn cancelled before iteration", "iteration", iteration)
			e.recordTurn(ag, OutcomeCancelled, iterations)
			return OutcomeCancelled, nil
		}

		req := &CompletionRequest{
			Model:       ag.model,
			Messages:    sess.Messages(),
			Tools:       defs,
			MaxTokens:   ag.maxTokens,
			Temperature: ag.temperature,
		}

		start := time.Now()
		chunks, err := e.provider.Complete(ctx, req)
		if err != nil {
			e.recordLLM(ag, "error", time.Since(start))
			e.logger.Error(ctx, "completion request failed", "error", err)
			e.send(ctx, sink, models.ErrorEvent("completion request failed: "+err.Error()))
			e.recordTurn(ag, OutcomeError, iterations)
			return OutcomeError, err
		}

		e.send(ctx, sink, models.TurnStart(messageID))
		endEmitted = false

		var text strings.Builder
		var calls []models.ToolCall
		var streamErr error
		cancelled := false

		for chunk := range chunks {
			if chunk.Err != nil {
				streamErr = chunk.Err
				break
			}
			if sess.Cancelled() {
				cancelled = true
				break
			}
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
				e.send(ctx, sink, models.ContentDelta(messageID, chunk.Text))
			}
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
			if chunk.Done {
				break
			}
		}
		elapsed := time.Since(start)

		if streamErr != nil {
			e.recordLLM(ag, "error", elapsed)
			e.logger.Error(ctx, "completion stream failed", "error", streamErr)
			e.send(ctx, sink, models.ErrorEvent("completion stream failed: "+streamErr.Error()))
			e.recordTurn(ag, OutcomeError, iterations)
			return OutcomeError, streamErr
		}
		e.recordLLM(ag, "success", elapsed)

		if cancelled {
			// Partial assistant output is discarded, not persisted.
			go drain(chunks)
			e.logger.Info(ctx, "turn cancelled mid-stream", "message_id", messageID)
			e.recordTurn(ag, OutcomeCancelled, iterations)
			return OutcomeCancelled, nil
		}

		if len(calls) == 0 {
			sess.Append(models.AssistantMessage(text.String()))
			e.send(ctx, sink, models.TurnEnd(messageID))
			endEmitted = true
			if ag.memory != nil {
				ag.memory.RecordExchange(sess.ID(), ag.name, userInput, text.String())
			}
			e.recordTurn(ag, OutcomeCompleted, iterations)
			return OutcomeCompleted, nil
		}

		sess.Append(models.AssistantMessage(text.String(), calls...))
		e.send(ctx, sink, models.TurnEnd(messageID))
		endEmitted = true

		infos := make([]models.ToolCallInfo, len(calls))
		for i, call := range calls {
			infos[i] = models.ToolCallInfo{Name: call.Name, Arguments: call.Arguments}
		}
		e.send(ctx, sink, &models.Event{
			Type:      models.EventToolCallsStart,
			MessageID: messageID,
			Tools:     infos,
		})

		for _, call := range calls {
			if sess.Cancelled() {
				e.logger.Info(ctx, "turn cancelled before tool dispatch", "tool", call.Name)
				e.recordTurn(ag, OutcomeCancelled, iterations)
				return OutcomeCancelled, nil
			}

			toolStart := time.Now()
			result := ag.tools.ExecuteCall(ctx, call)
			status := "success"
			toolText := result.Content
			if result.IsError {
				status = "error"
				toolText = "Error: " + toolText
			}
			e.recordTool(call.Name, status, time.Since(toolStart))
			e.logger.Debug(ctx, "tool executed", "tool", call.Name, "status", status)

			e.send(ctx, sink, &models.Event{
				Type:       models.EventToolCallResult,
				MessageID:  messageID,
				ToolName:   call.Name,
				ToolResult: toolText,
			})
			sess.Append(models.ToolMessage(call.ID, call.Name, toolText))

			if ag.memory != nil {
				ag.memory.RecordToolCall(sess.ID(), ag.name, call.Name, toolText)
			}
		}
	}

	msg := fmt.Sprintf("maximum iterations (%d) reached without a final response", ag.maxIterations)
	e.logger.Warn(ctx, msg)
	e.send(ctx, sink, models.ErrorEvent(msg))
	// The truncation error still closes with the guaranteed turn_end.
	endEmitted = false
	e.recordTurn(ag, OutcomeTruncated, iterations)
	return OutcomeTruncated, ErrMaxIterations
}

func (e *Executor) send(ctx context.Context, sink Sink, ev *models.Event) {
	if err := sink.Send(ctx, ev); err != nil {
		e.logger.Debug(ctx, "event send failed", "type", string(ev.Type), "error", err)
	}
}

func (e *Executor) recordLLM(ag *Agent, status string, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordLLMRequest(e.provider.Name(), ag.model, status, elapsed.Seconds())
	}
}

func (e *Executor) recordTool(name, status string, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordToolExecution(name, status, elapsed.Seconds())
	}
}

func (e *Executor) recordTurn(ag *Agent, outcome Outcome, iterations int) {
	if e.metrics != nil {
		e.metrics.RecordTurn(ag.name, string(outcome), iterations)
	}
}

// drain consumes leftover chunks so an abandoned provider goroutine can
// finish sending and exit.
func drain(ch <-chan *CompletionChunk) {
	for range ch {
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadenza-ai/cadenza/internal/agent"
	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/internal/sessions"
	"github.com/cadenza-ai/cadenza/pkg/models"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsSendBuffer      = 64
	wsPingInterval    = 15 * time.Second
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
)

// clientFrame is one inbound control message.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Agent   string `json:"agent,omitempty"`
}

// conn is one websocket connection bound to one chat session.
type conn struct {
	server    *Server
	ws        *websocket.Conn
	sessionID string
	send      chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	// startMu serializes turn starts so a rapid submit pair cannot
	// interleave the interrupt-wait-start sequence.
	startMu sync.Mutex
}

func newConn(s *Server, ws *websocket.Conn, sessionID string) *conn {
	return &conn{
		server:    s,
		ws:        ws,
		sessionID: sessionID,
		send:      make(chan []byte, wsSendBuffer),
	}
}

func (c *conn) run(parent context.Context) {
	c.ctx, c.cancel = context.WithCancel(parent)
	ctx := observability.WithSessionID(c.ctx, c.sessionID)
	c.server.logger.Info(ctx, "client connected")

	go c.writeLoop()
	c.readLoop(ctx)

	c.cancel()
	_ = c.ws.Close()
	c.teardown(ctx)
}

// teardown destroys the session when the client disconnects: the active
// turn is hard-cancelled, history dropped, and session-scoped memories
// cleared.
func (c *conn) teardown(ctx context.Context) {
	c.server.store.Remove(c.sessionID)
	if c.server.memory != nil {
		c.server.memory.ClearSession(c.sessionID)
	}
	c.server.logger.Info(ctx, "client disconnected, session cleaned up")
}

func (c *conn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(wsMaxPayloadBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendEvent(models.ErrorEvent("invalid frame: " + err.Error()))
			continue
		}

		switch frame.Type {
		case "submit_message":
			c.handleSubmit(ctx, frame)
		case "stop":
			c.handleStop(ctx)
		case "switch_agent":
			c.handleSwitchAgent(ctx, frame)
		case "list_agents":
			c.handleListAgents()
		default:
			c.sendEvent(models.ErrorEvent(fmt.Sprintf("unknown frame type %q", frame.Type)))
		}
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

// handleSubmit acknowledges the user message and starts a turn. An
// in-flight turn is interrupted first and the new turn waits for it to
// unwind, so history is never mutated by two turns at once.
func (c *conn) handleSubmit(ctx context.Context, frame clientFrame) {
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		c.sendEvent(models.ErrorEvent("content is required"))
		return
	}

	sess := c.server.store.GetOrCreate(c.sessionID)
	c.sendJSON(map[string]any{
		"type":    "user_message_received",
		"content": content,
	})

	go c.startTurn(ctx, sess, content, frame.Agent)
}

func (c *conn) startTurn(ctx context.Context, sess *sessions.Session, content, agentName string) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if prior := sess.Interrupt(); prior != nil {
		select {
		case <-prior.Done:
		case <-c.ctx.Done():
			return
		}
	}

	handler, err := c.server.manager.Resolve(c.sessionID, agentName)
	if err != nil {
		if errors.Is(err, agent.ErrUnknownAgent) {
			c.sendEvent(models.ErrorEvent(err.Error()))
			return
		}
		c.sendEvent(models.ErrorEvent("agent resolution failed: " + err.Error()))
		return
	}

	turnCtx, cancel := context.WithCancel(c.ctx)
	run := &sessions.Run{Cancel: cancel, Done: make(chan struct{})}
	sess.SetRun(run)

	defer func() {
		sess.ClearRun()
		cancel()
		close(run.Done)
	}()

	outcome, err := handler.Run(turnCtx, &eventChannel{conn: c}, sess, content)
	if err != nil {
		c.server.logger.Error(ctx, "turn failed",
			"agent", handler.Name(), "outcome", string(outcome), "error", err)
		return
	}
	c.server.logger.Info(ctx, "turn finished",
		"agent", handler.Name(), "outcome", string(outcome))
}

func (c *conn) handleStop(ctx context.Context) {
	sess, ok := c.server.store.Get(c.sessionID)
	if !ok {
		return
	}
	if sess.Interrupt() != nil {
		c.server.logger.Info(ctx, "stop requested")
	}
}

func (c *conn) handleSwitchAgent(ctx context.Context, frame clientFrame) {
	name := strings.TrimSpace(frame.Agent)
	if name == "" {
		c.sendEvent(models.ErrorEvent("agent is required"))
		return
	}
	if err := c.server.manager.Bind(c.sessionID, name); err != nil {
		c.sendEvent(models.ErrorEvent(err.Error()))
		return
	}
	c.server.logger.Info(ctx, "agent switched", "agent", name)
	c.sendJSON(map[string]any{
		"type":  "agent_switched",
		"agent": name,
	})
}

func (c *conn) handleListAgents() {
	infos := c.server.manager.List()
	agents := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		agents = append(agents, map[string]any{
			"name":        info.Name,
			"type":        info.Type,
			"description": info.Description,
			"default":     info.IsDefault,
		})
	}
	c.sendJSON(map[string]any{
		"type":   "agent_list",
		"agents": agents,
	})
}

func (c *conn) sendEvent(ev *models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *conn) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue hands a frame to the write loop, blocking when the buffer is
// full. A client that stops reading trips the write deadline, which
// cancels the connection and unblocks every waiting sender, so no frame
// is ever dropped while the connection is alive.
func (c *conn) enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// eventChannel adapts a connection to the agent.Sink the executor
// streams into.
type eventChannel struct {
	conn *conn
}

func (e *eventChannel) Send(_ context.Context, ev *models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.conn.enqueue(data)
}

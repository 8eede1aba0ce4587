// Package gateway exposes the websocket surface: one connection per
// chat session, inbound control frames (submit_message, stop,
// switch_agent, list_agents), outbound event frames streamed from the
// active turn.
package gateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadenza-ai/cadenza/internal/agent"
	"github.com/cadenza-ai/cadenza/internal/memory"
	"github.com/cadenza-ai/cadenza/internal/observability"
	"github.com/cadenza-ai/cadenza/internal/sessions"
)

// Server routes websocket connections to agents.
type Server struct {
	store    *sessions.Store
	manager  *agent.Manager
	memory   *memory.Service
	logger   *observability.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

// NewServer creates a gateway server. memory and metrics may be nil.
func NewServer(store *sessions.Store, manager *agent.Manager, memoryService *memory.Service, logger *observability.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		store:   store,
		manager: manager,
		memory:  memoryService,
		logger:  logger.WithComponent("gateway"),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Routes returns the HTTP mux for the websocket server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// MetricsRoutes returns the mux for the metrics listener.
func (s *Server) MetricsRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleWS upgrades the connection and runs it until disconnect. The
// session id comes from ?session_id=; a fresh one is minted when the
// client does not supply one.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newConn(s, conn, sessionID)
	c.run(r.Context())
}

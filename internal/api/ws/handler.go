package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/orchestrator"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The backend sits behind the shell on localhost
	},
}

// Command is a shell-to-backend message on the stream
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ConfirmID string `json:"confirm_id,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// Handler streams lifecycle notifications to the shell and accepts
// lightweight commands back.
type Handler struct {
	orch    *orchestrator.Orchestrator
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a WebSocket handler
func NewHandler(orch *orchestrator.Orchestrator, log *logging.Logger) *Handler {
	return &Handler{orch: orch, log: log.Named("ws")}
}

// WithMetrics adds metrics tracking to the handler
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// HandleConnection upgrades the request and pumps notifications until the
// peer goes away. All writes go through a single goroutine; gorilla
// connections allow one concurrent writer.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	notifications, cancel := h.orch.Subscribe()
	defer cancel()

	// Replies raised by the read loop, merged into the writer
	replies := make(chan orchestrator.Notification, 16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case n, ok := <-notifications:
				if !ok {
					return
				}
				if h.metrics != nil {
					h.metrics.RecordWSMessage("out", n.Type)
				}
				if err := conn.WriteJSON(n); err != nil {
					return
				}
			case n := <-replies:
				if err := conn.WriteJSON(n); err != nil {
					return
				}
			}
		}
	}()

	h.reply(replies, orchestrator.Notification{Type: "system", Data: "connected"})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", cmd.Type)
		}
		h.dispatch(replies, cmd)
	}

	cancel()
	<-done
}

func (h *Handler) dispatch(replies chan<- orchestrator.Notification, cmd Command) {
	switch cmd.Type {
	case "activate":
		h.orch.Activate(id.SessionID(cmd.SessionID))
	case "close":
		h.orch.Close(id.SessionID(cmd.SessionID))
	case "confirm":
		if !h.orch.ResolveConfirm(id.ConfirmID(cmd.ConfirmID), cmd.Confirmed) {
			h.reply(replies, orchestrator.Notification{Type: "error", Data: "confirmation not found"})
		}
	case "ping":
		h.reply(replies, orchestrator.Notification{Type: "pong"})
	default:
		h.reply(replies, orchestrator.Notification{Type: "error", Data: "unknown command type"})
	}
}

// reply enqueues a write without blocking the read loop
func (h *Handler) reply(replies chan<- orchestrator.Notification, n orchestrator.Notification) {
	select {
	case replies <- n:
	default:
		h.log.Debug("reply buffer full, dropping message", zap.String("type", n.Type))
	}
}

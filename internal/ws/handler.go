package ws

import (
	"net/http"
	"sync"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/manager"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/logging"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Access control belongs to the deployment front
	},
}

// Message is the wire format in both directions.
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// Handler manages WebSocket attach streams.
type Handler struct {
	manager *manager.Manager
	log     *logging.Logger
	metrics *monitoring.Metrics // optional
}

// NewHandler creates a new WebSocket handler.
func NewHandler(mgr *manager.Manager, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		manager: mgr,
		log:     log,
		metrics: metrics,
	}
}

// HandleStream upgrades the connection and attaches it to a session as a
// live observer.
func (h *Handler) HandleStream(c *gin.Context) {
	sessionID := c.Param("id")

	s, err := h.manager.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	streamID := uuid.NewString()
	log := h.log.With(
		zap.String("stream_id", streamID),
		zap.String("session_id", sessionID))

	if h.metrics != nil {
		h.metrics.StreamsActive.Inc()
		defer h.metrics.StreamsActive.Dec()
	}

	// gorilla permits a single concurrent writer; the attach callback and
	// this read loop both write.
	var writeMu sync.Mutex
	send := func(msg Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	if err := s.Attach(func(chunk string) {
		if err := send(Message{Type: "output", Data: chunk}); err != nil {
			log.Debug("stream write failed", zap.Error(err))
		}
	}); err != nil {
		_ = send(Message{Type: "error", Data: err.Error()})
		return
	}
	defer s.Detach()

	_ = send(Message{Type: "system", Data: "attached"})
	log.Info("stream attached")

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Debug("stream closed", zap.Error(err))
			return
		}

		switch msg.Type {
		case "input":
			if err := s.SendInput(msg.Data); err != nil {
				_ = send(Message{Type: "error", Data: err.Error()})
			}
		case "resize":
			if err := s.Resize(msg.Cols, msg.Rows); err != nil {
				_ = send(Message{Type: "error", Data: err.Error()})
			}
		case "ping":
			_ = send(Message{Type: "pong"})
		default:
			_ = send(Message{Type: "error", Data: "unknown message type"})
		}
	}
}

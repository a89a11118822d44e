package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// Handler upgrades authenticated requests and pumps hub messages to them.
type Handler struct {
	hub    *Hub
	topic  func(*http.Request) (string, bool)
	logger *logging.Logger
}

// NewHandler resolves each request to its topic with topic; requests it
// rejects get 401.
func NewHandler(hub *Hub, topic func(*http.Request) (string, bool), logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{hub: hub, topic: topic, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topic(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("realtime: upgrade failed", "error", err)
		return
	}

	c := h.hub.register(topic)
	h.logger.Info("realtime: connection opened", "topic", topic)
	go h.writePump(conn, c)
	h.readPump(conn, c)
}

// readPump only exists to notice the peer going away and to keep the read
// deadline moving with pongs.
func (h *Handler) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.hub.unregister(c)
		_ = conn.Close()
		h.logger.Debug("realtime: connection closed", "topic", c.topic)
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

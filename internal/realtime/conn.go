package realtime

import (
	"auction-engine/utils"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 4096
	upgradeBufSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  upgradeBufSize,
	WriteBufferSize: upgradeBufSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and pumps frames between the socket and the hub
// until either side gives up. authUserID may be empty for anonymous viewers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, authUserID string, heartbeat time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("realtime: upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	c := NewClient(authUserID)
	h.Register(c)
	utils.Debug("realtime: client connected", map[string]any{"client_id": c.id, "user_id": authUserID})

	go h.writePump(conn, c, heartbeat)
	h.readPump(conn, c)
}

func (h *Hub) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		h.Unregister(c)
		_ = conn.Close()
		utils.Debug("realtime: client disconnected", map[string]any{"client_id": c.id})
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	conn.SetPongHandler(func(string) error {
		h.Touch(c)
		return conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("realtime: read failed", map[string]any{"client_id": c.id, "error": err.Error()})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		h.handleFrame(c, raw)
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *Client, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

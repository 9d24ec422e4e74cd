package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	ws "label-platform/internal/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Admins authenticate with their token, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub       *ws.Hub
	JwtSecret string
	Logger    *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, jwtSecret string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{Hub: hub, JwtSecret: jwtSecret, Logger: logger}
}

// ServeWs streams order events to an admin. Browsers cannot set headers on
// a websocket handshake, so the token comes from ?token= or the admin cookie.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = c.Cookie(middleware.AdminCookie)
	}

	identity, err := middleware.ParseToken(h.JwtSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	if !identity.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &ws.Client{
		Hub:    h.Hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: identity.UserID,
	}

	if !h.Hub.Join(client) {
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) writePump(client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the close; admins never send anything.
func (h *WebSocketHandler) readPump(client *ws.Client) {
	defer func() {
		client.Hub.Leave(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("WebSocket read error", zap.Int64("user_id", client.UserID), zap.Error(err))
			}
			break
		}
	}
}

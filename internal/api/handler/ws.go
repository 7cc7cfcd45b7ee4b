package handler

import (
	"log"
	"net/http"

	"roomchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.Config.OriginAllowed(r.Header.Get("Origin"))
		},
	}
}

// ServeWebSocket upgrades the request and hands the connection to the hub. A
// missing or bad token still connects, as an anonymous session.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WARNING: websocket upgrade failed: %v", err)
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub)
	h.Hub.Connect(client, token)
}

package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"roomchat/backend/internal/config"
	"roomchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	id   string
	Conn *websocket.Conn
	Hub  *ManagerService

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewWebSocketClient wraps an upgraded connection with a fresh connection id.
func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		id:   uuid.New().String(),
		Conn: conn,
		Hub:  hub,
		send: make(chan []byte, config.SocketSendBuffer),
	}
}

func (c *WebSocketClient) ConnID() string { return c.id }

func (c *WebSocketClient) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Run starts the pumps for the WebSocket.
func (c *WebSocketClient) Run() {
	c.Hub.track(c.writePump)
	c.Hub.track(c.readPump)
}

// Close closes the send queue, which makes writePump flush and hang up.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c.id)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.SocketReadLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message from %s: %v", c.id, err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.id, err)
			c.Hub.Router.EmitToConnection(c.id, models.EventServerInfo, models.ServerInfoPayload{Message: "malformed frame"})
			continue
		}

		c.Hub.HandleEvent(c.id, env)
	}
}

// writePump writes queued frames, one WebSocket message per frame.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// queue closed by the hub
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("Error writing to client %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

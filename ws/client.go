package ws

import (
	"encoding/json"
	"time"

	"disaster_backend/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// IncomingWSMessage - {"type":"subscribe","topics":["new_flood"]}
type IncomingWSMessage struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

type Client struct {
	ID      string
	ActorID string
	Conn    *websocket.Conn
	Send    chan any

	Manager *WebSocketManager
}

func newClient(manager *WebSocketManager, conn *websocket.Conn, actorID string) *Client {
	return &Client{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Conn:    conn,
		Send:    make(chan any, sendBufferSize),
		Manager: manager,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Manager.leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket read error", "client_id", c.ID, "error", err)
			}
			return
		}

		var msg IncomingWSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			logger.Debug("WebSocket: failed to parse message", "client_id", c.ID, "error", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				logger.Debug("WebSocket write error", "client_id", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg IncomingWSMessage) {
	switch msg.Type {
	case "subscribe":
		c.Manager.Subscribe(c, msg.Topics...)
	case "unsubscribe":
		c.Manager.Unsubscribe(c, msg.Topics...)
	default:
		logger.Debug("WebSocket: unhandled message type", "client_id", c.ID, "type", msg.Type)
	}
}

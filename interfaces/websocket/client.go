package websocket

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one editor connection to a graph
type Client struct {
	id      string
	graphID string
	userID  string
	session *services.Session
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *zap.Logger
}

// NewClient creates a client for conn watching sess
func NewClient(sess *services.Session, userID string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:      id,
		graphID: sess.ID,
		userID:  userID,
		session: sess,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("graphID", sess.ID),
			zap.String("connectionID", id),
		),
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// Start queues the initial snapshot, joins the hub and starts the pumps
func (c *Client) Start() {
	c.send <- c.hello()
	select {
	case c.hub.register <- c:
	case <-c.hub.ctx.Done():
		c.closeConn()
		return
	}
	go c.writePump()
	go c.readPump()
}

// hello carries the canvas as it is at connect time
func (c *Client) hello() []byte {
	data, err := json.Marshal(map[string]interface{}{
		"connectionId": c.id,
		"userId":       c.userID,
		"graph":        c.session.Store.Snapshot(),
	})
	if err != nil {
		c.logger.Error("Failed to marshal snapshot", zap.Error(err))
	}
	return newMessage(TypeConnected, c.graphID, data)
}

// readPump only services control frames; editing goes through the REST API
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.closeConn()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeConn() {
	_ = c.conn.Close()
}

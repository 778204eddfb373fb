package broadcast

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Client is one subscriber to a session's snapshot stream. conn is nil for
// channel-only subscribers created via Hub.Subscribe; Recv drains send
// directly in that case instead of a websocket write pump.
type Client struct {
	id        string
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	logger    *zap.Logger
}

// NewClient wraps an established websocket connection as a session
// subscriber.
func NewClient(sessionID string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		id:        uuid.New().String(),
		sessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		logger:    logger.With(zap.String("session_id", sessionID)),
	}
}

func newInternalClient(sessionID string, hub *Hub) *Client {
	return &Client{
		id:        uuid.New().String(),
		sessionID: sessionID,
		hub:       hub,
		send:      make(chan []byte, sendBufferSize),
	}
}

// Start registers the client and begins its websocket read/write pumps.
// No-op for channel-only clients (conn == nil); those are driven by Recv.
func (c *Client) Start() {
	c.hub.register <- c
	if c.conn == nil {
		return
	}
	go c.writePump()
	go c.readPump()
}

// Recv returns the channel of outbound snapshot bytes for a channel-only
// subscriber created via Hub.Subscribe.
func (c *Client) Recv() <-chan []byte { return c.send }

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}
		// Subscribers are read-only; any inbound frame besides control
		// frames (handled by gorilla) is ignored.
		_ = bytes.TrimSpace(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("failed to write snapshot", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

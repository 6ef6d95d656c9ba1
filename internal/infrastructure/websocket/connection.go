package websocket

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"relaychat/pkg/logger"
)

type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateAwaitingSetup
	StateActive
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingSetup:
		return "awaiting_setup"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Connection is one live socket. Fields below the mutex note are owned by
// the Broker and only touched under its lock.
type Connection struct {
	ID          string
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	boundUserID string

	// guarded by Broker.mu
	state    ConnectionState
	userID   string
	username string
	rooms    map[string]struct{}
}

func newConnection(conn *websocket.Conn, boundUserID string, sendBuffer int) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		boundUserID: boundUserID,
		state:       StateConnecting,
		rooms:       make(map[string]struct{}),
	}
}

// enqueue never blocks. It reports false when the send buffer is full.
func (c *Connection) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			c.conn.Close()
		}
	})
}

// Serve runs the pumps for an upgraded socket until it closes. boundUserID
// is the identity proven at upgrade time, or empty.
func (b *Broker) Serve(ctx context.Context, conn *websocket.Conn, boundUserID string) {
	c := newConnection(conn, boundUserID, b.config.SendBuffer)
	if err := b.Attach(c); err != nil {
		logger.Warn("Rejecting connection: %v", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go b.writePump(c)
	b.readPump(ctx, c)
}

func (b *Broker) readPump(ctx context.Context, c *Connection) {
	defer b.Detach(c)

	pongWait := b.config.PingTimeout
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("Unexpected close on %s: %v", c.ID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Info("Connection %s timed out", c.ID)
			}
			return
		}

		// Any frame counts as liveness.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			b.sendTo(c, EventError, ErrorPayload{Message: "malformed event"})
			continue
		}
		b.handleInbound(ctx, c, env)
	}
}

func (b *Broker) writePump(c *Connection) {
	pingInterval := (b.config.PingTimeout * 9) / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("Write to %s failed: %v", c.ID, err)
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

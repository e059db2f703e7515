package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// registration is the first message a client must send on a fresh
// connection before any notifications will route to it.
type registration struct {
	Event   string `json:"event"`
	Payload struct {
		UserID         string `json:"userId"`
		Role           string `json:"role"`
		OrganizationID string `json:"organizationId"`
	} `json:"payload"`
}

// Client wraps one websocket connection with a buffered outbound queue.
// Writes go through the send channel so the fan-out never blocks on a
// slow peer; a full buffer drops the message.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewClient wraps a websocket connection; buf sizes the outbound queue.
func NewClient(conn *websocket.Conn, buf int, logger *slog.Logger) *Client {
	if buf <= 0 {
		buf = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		send:   make(chan []byte, buf),
		logger: logger,
	}
}

// Enqueue offers a frame to the outbound queue without blocking.
// It reports false when the buffer is full or the client is closed.
func (c *Client) Enqueue(frame []byte) (delivered bool) {
	if c == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			delivered = false
		}
	}()
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue and the underlying connection once.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// ReadPump consumes inbound frames until the peer disconnects. The only
// inbound message the server understands is userRegistered; everything
// else is ignored. The registry entry is removed when the pump exits.
func (c *Client) ReadPump(registry *Registry) {
	defer func() {
		registry.Unregister(c)
		c.Close()
	}()

	if c.conn == nil {
		return
	}

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read failed", "error", err)
			}
			return
		}

		var msg registration
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Error("ignoring malformed client message", "error", err)
			continue
		}
		if msg.Event != "userRegistered" {
			continue
		}
		// The identity was bound server-side at upgrade time; the client
		// message may only confirm it, never claim another user.
		if !registry.Refresh(c, msg.Payload.UserID) {
			c.logger.Warn("rejected registration for mismatched identity",
				"claimed_user_id", msg.Payload.UserID)
		}
	}
}

// WritePump drains the outbound queue onto the connection and keeps the
// peer alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	if c.conn == nil {
		return
	}

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"classchat/internal/config"
	"classchat/internal/metrics"
	"classchat/internal/models"
	"classchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const defaultSendQueueSize = 256

// Client is one authenticated websocket connection. A user may own any
// number of clients at once.
type Client struct {
	id    string
	user  *models.User
	conn  *websocket.Conn
	cfg   config.WebSocketConfig
	state atomic.Int32

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient wraps an upgraded connection whose credential has already been
// verified. The client starts in StateAuthenticated.
func NewClient(conn *websocket.Conn, user *models.User, cfg config.WebSocketConfig) *Client {
	size := cfg.SendQueueSize
	if size <= 0 {
		size = defaultSendQueueSize
	}

	c := &Client{
		id:   uuid.NewString(),
		user: user,
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, size),
	}
	c.state.Store(int32(StateAuthenticated))
	return c
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) User() *models.User {
	return c.user
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Send queues an encoded event for the write pump. It never blocks: when the
// queue is full the oldest pending event is discarded to make room.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	for {
		select {
		case c.send <- data:
			return nil
		default:
		}

		select {
		case <-c.send:
			metrics.OutboundDropped.Inc()
			logger.Warn("Outbound queue full for connection %s, dropped oldest event", c.id)
		default:
		}
	}
}

// Close stops accepting events. The write pump drains what is queued, sends a
// close frame and shuts the transport.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump delivers every inbound frame to handle, one at a time and in
// arrival order, until the transport fails or the peer goes away.
func (c *Client) ReadPump(handle func([]byte)) {
	defer c.conn.Close()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}

	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on connection %s: %v", c.id, err)
			}
			return
		}
		handle(message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on connection %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

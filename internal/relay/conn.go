package relay

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// wsConn wraps a gorilla connection with a write mutex so the fan-out path,
// the heartbeat ping and status messages never interleave frames. It
// implements room.Conn.
type wsConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// WriteJSON writes v as one JSON text frame.
func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.conn.WriteJSON(v)
}

// WriteText writes a literal text frame (heartbeat traffic).
func (c *wsConn) WriteText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// ReadMessage reads the next frame. Only one goroutine may read.
func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 64
)

// Conn serializes writes to a gorilla connection. gorilla allows one
// concurrent writer, while session events arrive from several goroutines.
type Conn struct {
	ws   *websocket.Conn
	send chan interface{}

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps ws and configures read limits and keep-alive.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Conn{
		ws:     ws,
		send:   make(chan interface{}, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Send queues v for writing. It reports false when the connection is closed
// or the client is too slow to keep up.
func (c *Conn) Send(v interface{}) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// SendWait queues v, waiting up to timeout for room in the buffer. Used for
// events the client must not miss, such as the final navigation.
func (c *Conn) SendWait(v interface{}, timeout time.Duration) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.send <- v:
		return true
	case <-c.closed:
		return false
	case <-t.C:
		return false
	}
}

// SendError queues a typed ErrorResponse.
func (c *Conn) SendError(code, msg string, fields map[string]string) bool {
	return c.Send(ErrorResponse{Event: EventError, Code: code, Error: msg, Fields: fields})
}

// WritePump writes queued messages and pings until Close. Call in a goroutine.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case v := <-c.send:
			if err := WriteTyped(c.ws, v); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case v := <-c.send:
			if err := WriteTyped(c.ws, v); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ReadJSON reads and decodes the next message.
func (c *Conn) ReadJSON(v interface{}) error {
	return c.ws.ReadJSON(v)
}

// Close stops the write pump. Safe to call repeatedly.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Done is closed once Close is called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

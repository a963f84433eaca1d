package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxFrameSize bounds incoming invocation frames.
	maxFrameSize = 512
)

var (
	// ErrSendQueueFull is returned by Send when the client's outgoing buffer
	// is full. The message is dropped for that client only.
	ErrSendQueueFull = errors.New("send queue full")

	// ErrClientClosed is returned by Send after the client has been closed.
	ErrClientClosed = errors.New("client closed")
)

// client is one WebSocket connection. Writes happen on its own goroutine so
// a slow browser never stalls a broadcast.
type client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, hub *Hub) *client {
	return &client{
		id:   id,
		conn: conn,
		hub:  hub,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send queues msg without blocking.
func (c *client) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close asks the write pump to send a close frame and drop the connection.
func (c *client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("ws: write failed", "client", c.id, "err", err)
				c.Close() //nolint:errcheck
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close() //nolint:errcheck
				return
			}
		}
	}
}

// readPump reads invocation frames and control messages until the
// connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.TextMessage {
			c.hub.invoke(c.id, frame)
		}
	}
}

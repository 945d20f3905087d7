// Package ws is the websocket frontend: it upgrades HTTP requests,
// owns the read and write loops for each connection, and bridges
// frames to the message dispatcher.
package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardparty/relay/internal/config"
)

// Conn wraps a websocket connection with a buffered outbound queue and
// a single writer goroutine, so broadcasts from any goroutine are
// serialized onto the wire in FIFO order.
type Conn struct {
	raw *websocket.Conn
	cfg config.WebSocketConfig

	outbound chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewConn wraps an upgraded websocket connection and starts its write
// pump.
//
// Precondition: raw must be a freshly upgraded, open connection.
// Postcondition: Returns a Conn whose Send is safe for concurrent use.
func NewConn(raw *websocket.Conn, cfg config.WebSocketConfig) *Conn {
	c := &Conn{
		raw:      raw,
		cfg:      cfg,
		outbound: make(chan []byte, cfg.OutboundBuffer),
		done:     make(chan struct{}),
	}

	raw.SetReadLimit(cfg.ReadLimit)
	if cfg.PingInterval > 0 {
		_ = raw.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
		raw.SetPongHandler(func(string) error {
			return raw.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
		})
	}

	go c.writePump()
	return c
}

// Send enqueues one text frame for delivery.
//
// Postcondition: Returns an error if the connection is closed or the
// outbound queue is full; the queue overflowing closes the connection,
// since a client that cannot drain broadcasts would otherwise stall
// every room it occupies.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}

	select {
	case c.outbound <- payload:
		return nil
	default:
		c.Close()
		return fmt.Errorf("outbound queue full, dropping connection")
	}
}

// Open reports whether the connection can still accept sends.
func (c *Conn) Open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close shuts the connection down. Safe to call more than once and from
// any goroutine.
//
// Postcondition: Send returns errors, the write pump exits, and the
// underlying connection is closed.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// ReadMessage blocks for the next inbound text frame.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, payload, err := c.raw.ReadMessage()
	return payload, err
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// writePump is the connection's sole writer. It drains the outbound
// queue, emits keepalive pings, and closes the socket on exit, which
// unblocks the read loop.
func (c *Conn) writePump() {
	var ticker *time.Ticker
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker = time.NewTicker(c.cfg.PingInterval)
		ping = ticker.C
		defer ticker.Stop()
	}
	defer c.raw.Close()

	for {
		select {
		case payload := <-c.outbound:
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.raw.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		case <-ping:
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.raw.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			// Flush whatever was queued before the close, then say goodbye.
			for {
				select {
				case payload := <-c.outbound:
					_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
					if err := c.raw.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				default:
					_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
					_ = c.raw.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

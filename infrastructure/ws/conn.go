// Package ws is the WebSocket transport. It owns connection lifecycle
// and frame encoding; every domain decision is delegated to the engine.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lyceum/domain/event"
	"lyceum/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// frame is the inbound wire shape.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// outFrame is the outbound wire shape, shared by notifications and acks.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   string `json:"ack,omitempty"`
}

// Connection is one live transport session. It implements
// contract.EventSink: Consume never blocks, a saturated or closed
// connection loses the notification.
type Connection struct {
	id     string
	log    *slog.Logger
	conn   *websocket.Conn
	send   chan outFrame
	closed chan struct{}
	once   sync.Once
}

func newConnection(log *slog.Logger, conn *websocket.Conn, bufferSize int) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		log:    log,
		conn:   conn,
		send:   make(chan outFrame, bufferSize),
		closed: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Consume(e event.Notification) error {
	return c.push(outFrame{Event: e.Kind(), Data: e})
}

func (c *Connection) ack(id string, payload any) {
	if err := c.push(outFrame{Event: "ack", Ack: id, Data: payload}); err != nil {
		c.log.Debug("Ack dropped", "conn", c.id, "err", err)
	}
}

func (c *Connection) push(f outFrame) error {
	select {
	case <-c.closed:
		return errors.ErrConnectionGone
	default:
	}
	select {
	case c.send <- f:
		return nil
	default:
		return errors.ErrDeliveryDropped
	}
}

// writePump serializes all writes to the peer and keeps it alive
// with periodic pings. It runs in its own goroutine per connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.log.Debug("Write failed, closing connection", "conn", c.id, "err", err)
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

func (c *Connection) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

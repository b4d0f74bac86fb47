package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/metrics"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 64 << 10
)

// FrameReplayer sends a client the current state of its slot.
type FrameReplayer interface {
	SendInitialFrame(c *Client)
}

type outbound struct {
	kind int
	data []byte
}

// Client represents a connected WebSocket client.
type Client struct {
	ID   uuid.UUID
	hub  *Hub
	conn *websocket.Conn
	send chan outbound

	mu     sync.Mutex
	closed bool

	slot     atomic.Int32
	watching atomic.Bool
	feeding  bool
}

// NewClient creates a new Client attached to the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New(),
		hub:  hub,
		conn: conn,
		send: make(chan outbound, 64),
	}
}

// Slot returns the slot this client views.
func (c *Client) Slot() int {
	return int(c.slot.Load())
}

// Watching reports whether the client asked for change batches.
func (c *Client) Watching() bool {
	return c.watching.Load()
}

// Send queues a message without blocking. It reports false when the
// client's buffer is full.
func (c *Client) Send(kind int, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- outbound{kind, data}:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendJSON(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	c.Send(websocket.TextMessage, data)
}

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
			break
		}
	}
}

// ReadPump reads client commands until the connection closes. Snapshots are
// delivered to snapshots, which may be nil when browser input is disabled.
func (c *Client) ReadPump(snapshots gamepad.Sink, frames FrameReplayer) {
	defer func() {
		if c.feeding && snapshots != nil {
			// the page feeding us went away: its pads went with it
			snapshots.Put(gamepad.Snapshot{})
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warnf("Client %s: bad message: %v", c.ID, err)
			continue
		}

		switch msg.Type {
		case TypeSnapshot:
			if snapshots == nil {
				continue
			}
			s, err := gamepad.DecodeSnapshot(msg.Gamepads)
			if err != nil {
				logger.Warnf("Client %s: %v", c.ID, err)
				continue
			}
			c.feeding = true
			snapshots.Put(s)
			metrics.SnapshotsReceived.WithLabelValues("browser").Inc()

		case TypeSelectSlot:
			if msg.Slot < 0 || msg.Slot >= gamepad.Slots {
				logger.Warnf("Client %s: invalid slot %d", c.ID, msg.Slot)
				continue
			}
			c.slot.Store(int32(msg.Slot))
			c.sendJSON(NewSlotSelectedMessage(msg.Slot))
			frames.SendInitialFrame(c)
			logger.Debugf("Client %s switched to slot %d", c.ID, msg.Slot)

		case TypeWatchChanges:
			c.watching.Store(true)

		default:
			logger.Warnf("Client %s: unknown message type %q", c.ID, msg.Type)
		}
	}
}

// Package hub fans rendered frames, diagnostics and change batches out to
// websocket clients, and feeds browser snapshots back in.
package hub

import (
	"context"
	"sync"

	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/metrics"
)

// Hub manages WebSocket clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// each calls fn for every client matching filter. Clients whose buffer is
// full are disconnected.
func (h *Hub) each(filter func(*Client) bool, kind int, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !filter(client) {
			continue
		}
		if !client.Send(kind, data) {
			go h.Unregister(client)
		}
	}
}

// BroadcastToSlot sends a message to all clients viewing slot.
func (h *Hub) BroadcastToSlot(kind int, data []byte, slot int) {
	h.each(func(c *Client) bool { return c.Slot() == slot }, kind, data)
}

// BroadcastToWatchers sends a message to clients that asked for changes.
func (h *Hub) BroadcastToWatchers(kind int, data []byte) {
	h.each((*Client).Watching, kind, data)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(kind int, data []byte) {
	h.each(func(*Client) bool { return true }, kind, data)
}

// Viewers returns how many clients view slot.
func (h *Hub) Viewers(slot int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.Slot() == slot {
			n++
		}
	}
	return n
}

// Run runs the hub's main loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.Viewers.Set(float64(n))
			logger.Infof("Client %s connected (total: %d)", client.ID, n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.Viewers.Set(float64(n))
			logger.Infof("Client %s disconnected (total: %d)", client.ID, n)
		}
	}
}

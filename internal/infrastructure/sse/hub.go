// Package sse keeps the server-sent event connections of one process and
// routes events to them by user.
package sse

import (
	"sync"

	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

// Hub indexes connections by client id and by user. A user may hold several
// connections at once, one per open tab or device.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*notification.SSEClient
	byUser  map[string]map[string]*notification.SSEClient
	stopped bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*notification.SSEClient),
		byUser:  make(map[string]map[string]*notification.SSEClient),
	}
}

// Register adds a connection. A connection reusing a client id replaces the
// old one, which is closed. Registering after Stop closes the client.
func (h *Hub) Register(client *notification.SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		client.Close()
		return
	}
	if old, ok := h.clients[client.ClientID]; ok {
		h.detach(old)
		old.Close()
	}
	h.clients[client.ClientID] = client
	conns := h.byUser[client.UserID]
	if conns == nil {
		conns = make(map[string]*notification.SSEClient)
		h.byUser[client.UserID] = conns
	}
	conns[client.ClientID] = client
	metrics.SSEClients.Inc()
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		h.detach(c)
		c.Close()
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserConnections returns how many connections userID holds.
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// BroadcastToUser queues message on every connection of userID. Connections
// with a full buffer miss the message.
func (h *Hub) BroadcastToUser(userID string, message *notification.SSEMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byUser[userID] {
		trySend(c, message)
	}
}

// Stop closes every connection and refuses new ones.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for _, c := range h.clients {
		h.detach(c)
		c.Close()
	}
}

// detach removes c from both indexes. Callers hold the write lock.
func (h *Hub) detach(c *notification.SSEClient) {
	delete(h.clients, c.ClientID)
	if conns := h.byUser[c.UserID]; conns != nil {
		delete(conns, c.ClientID)
		if len(conns) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	metrics.SSEClients.Dec()
}

func trySend(c *notification.SSEClient, msg *notification.SSEMessage) {
	select {
	case c.MessageChan <- msg:
	default:
		metrics.SSEDropped.Inc()
	}
}

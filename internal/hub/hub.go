package hub

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// Hub tracks websocket clients per session and detaches them from their
// coordinator when they go away.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	sessions   map[string]map[string]*Client // sessionID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	l := log.L()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, client := range h.clients {
				h.detach(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID()] = client
			sessionID := client.SessionID()
			if _, ok := h.sessions[sessionID]; !ok {
				h.sessions[sessionID] = make(map[string]*Client)
			}
			h.sessions[sessionID][client.ID()] = client
			h.mu.Unlock()
			l.Debug().Str(log.FieldSubscriber, client.ID()).Str(log.FieldSessionID, sessionID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID()]; ok {
				h.detach(client)
			}
			h.mu.Unlock()
			l.Debug().Str(log.FieldSubscriber, client.ID()).Msg("client unregistered")
		}
	}
}

// detach must be called with h.mu held.
func (h *Hub) detach(client *Client) {
	sessionID := client.SessionID()
	if clients, ok := h.sessions[sessionID]; ok {
		delete(clients, client.ID())
		if len(clients) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	delete(h.clients, client.ID())
	if client.Session != nil {
		client.Session.Unsubscribe(client.ID())
	}
	client.close()
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of clients following sessionID.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Total returns the number of connected clients.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

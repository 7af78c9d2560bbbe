package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/types"
)

const (
	// DefaultMaxClients is the maximum number of concurrent WebSocket clients
	DefaultMaxClients = 10000

	broadcastBuffer = 1024
)

// Hub maintains the set of active clients and broadcasts discoveries to
// them. It satisfies dispatch.Sink so it can sit next to the store in a
// MultiSink.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *types.EnrichedDiscovery

	done     chan struct{}
	stopOnce sync.Once

	maxClients int
	logger     *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *types.EnrichedDiscovery, broadcastBuffer),
		done:       make(chan struct{}),
		maxClients: DefaultMaxClients,
		logger:     logger.Named("ws-hub"),
	}
}

// Run runs the hub event loop until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.maxClients {
				h.closeClient(client)
				h.mu.Unlock()
				h.logger.Warn("max clients reached, rejecting connection",
					zap.Int("max_clients", h.maxClients))
				continue
			}
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.closeClient(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.Int("total_clients", total))

		case d := <-h.broadcast:
			h.broadcastDiscovery(d)
		}
	}
}

// Upsert queues d for broadcast. Slow consumers never block indexing: the
// discovery is dropped when the queue is full.
func (h *Hub) Upsert(_ context.Context, d *types.EnrichedDiscovery) error {
	select {
	case h.broadcast <- d:
	default:
		h.logger.Warn("broadcast channel full, dropping discovery",
			zap.String("chain", d.ChainID),
			zap.String("id", d.ID))
	}
	return nil
}

func (h *Hub) broadcastDiscovery(d *types.EnrichedDiscovery) {
	payload, err := json.Marshal(d)
	if err != nil {
		h.logger.Error("failed to marshal discovery", zap.Error(err))
		return
	}
	frame, err := json.Marshal(Message{Type: TypeContract, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		if !client.Wants(d.ChainID) {
			continue
		}
		select {
		case client.send <- frame:
			sent++
		default:
			h.logger.Warn("client buffer full, closing connection")
			delete(h.clients, client)
			h.closeClient(client)
		}
	}

	h.logger.Debug("discovery broadcasted",
		zap.String("chain", d.ChainID),
		zap.Int("recipients", sent))
}

// closeClient closes the client's send channel once. h.mu must be held.
func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop stops the hub and closes all client connections
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			delete(h.clients, client)
			h.closeClient(client)
		}
		h.logger.Info("hub stopped")
	})
}

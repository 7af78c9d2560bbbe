package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/constants"
)

const (
	writeWait      = constants.DefaultWSWriteTimeout
	pongWait       = constants.DefaultWSPongTimeout
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	chains map[string]bool
	mu     sync.RWMutex

	// closed is set once send is closed; guarded by hub.mu
	closed bool

	logger *zap.Logger
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, constants.DefaultWSClientBuffer),
		chains: make(map[string]bool),
		logger: logger,
	}
}

// Wants reports whether discoveries of chainID go to this client
func (c *Client) Wants(chainID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chains) == 0 || c.chains[chainID]
}

// Subscribe adds chainID to the client's filter
func (c *Client) Subscribe(chainID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains[chainID] = true
}

// Unsubscribe removes chainID from the client's filter
func (c *Client) Unsubscribe(chainID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chains, chainID)
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per message so clients can decode each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		var req SubscribeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || req.ChainID == "" {
			c.sendError("invalid " + msg.Type + " request")
			return
		}
		if msg.Type == TypeSubscribe {
			c.Subscribe(req.ChainID)
			c.sendSuccess("subscribed to " + req.ChainID)
		} else {
			c.Unsubscribe(req.ChainID)
			c.sendSuccess("unsubscribed from " + req.ChainID)
		}
	case TypePing:
		c.sendMessage(Message{Type: TypePong})
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message")
	}
}

func (c *Client) sendError(errMsg string) {
	payload, _ := json.Marshal(ErrorMessage{Error: errMsg})
	c.sendMessage(Message{Type: TypeError, Payload: payload})
}

func (c *Client) sendSuccess(message string) {
	payload, _ := json.Marshal(SuccessMessage{Message: message})
	c.sendMessage(Message{Type: TypeSuccess, Payload: payload})
}

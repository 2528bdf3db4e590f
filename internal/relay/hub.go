package relay

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxClients is the number of clients a relay pairs.
const MaxClients = 2

// Client is one connected chat client.
type Client struct {
	ID       string
	Conn     Conn
	Outgoing chan []byte
}

// NewClient creates a Client with a fresh ID.
func NewClient(conn Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, 16),
	}
}

// Hub tracks the paired clients and the shutdown state.
type Hub struct {
	mu           sync.RWMutex
	clients      []*Client
	shuttingDown bool
	closed       bool
	log          *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log}
}

// Register adds c and returns the client already present, if any. It
// reports false when the hub is full, shutting down or closed.
func (h *Hub) Register(c *Client) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.shuttingDown || len(h.clients) >= MaxClients {
		return nil, false
	}
	var peer *Client
	if len(h.clients) > 0 {
		peer = h.clients[0]
	}
	h.clients = append(h.clients, c)
	return peer, true
}

// Unregister removes c and returns the remaining client count.
func (h *Hub) Unregister(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, cl := range h.clients {
		if cl == c {
			h.clients = append(h.clients[:i], h.clients[i+1:]...)
			break
		}
	}
	return len(h.clients)
}

// Peer returns the client paired with c, or nil.
func (h *Hub) Peer(c *Client) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.peerLocked(c)
}

func (h *Hub) peerLocked(c *Client) *Client {
	for _, cl := range h.clients {
		if cl != c {
			return cl
		}
	}
	return nil
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BeginShutdown switches the hub into shutdown. It reports false if the hub
// was already shutting down.
func (h *Hub) BeginShutdown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shuttingDown {
		return false
	}
	h.shuttingDown = true
	return true
}

// ShuttingDown reports whether a shutdown is in progress.
func (h *Hub) ShuttingDown() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.shuttingDown
}

// SendTo queues data for c. It never blocks; a full queue drops the frame.
func (h *Hub) SendTo(c *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.sendLocked(c, data)
}

// SendToPeer queues data for the client paired with sender and reports
// whether there was one.
func (h *Hub) SendToPeer(sender *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	peer := h.peerLocked(sender)
	if peer == nil {
		return false
	}
	h.sendLocked(peer, data)
	return true
}

// Broadcast queues data for every client.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.sendLocked(c, data)
	}
}

// CloseAll closes every client connection. Later registrations are refused.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		_ = c.Conn.Close()
	}
}

// sendLocked must only target registered clients; Outgoing is closed after
// Unregister.
func (h *Hub) sendLocked(c *Client, data []byte) {
	if !h.registered(c) {
		return
	}
	select {
	case c.Outgoing <- data:
	default:
		h.log.Warn("client queue full, frame dropped", zap.String("client", c.ID))
	}
}

func (h *Hub) registered(c *Client) bool {
	for _, cl := range h.clients {
		if cl == c {
			return true
		}
	}
	return false
}

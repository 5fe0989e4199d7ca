package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/cleanhome/internal/metrics"
)

// Hub is the server side of the mirror: it fans snapshots out to every
// connected client and dispatches snapshots received from clients to the
// registered handlers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	latest   map[string][]byte
	handlers map[string]map[int]func(json.RawMessage)
	nextID   int
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		latest:   make(map[string][]byte),
		handlers: make(map[string]map[int]func(json.RawMessage)),
		logger:   logger,
	}
}

// Register adds a client and queues the latest snapshot of every collection
// so it starts in sync.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	for _, data := range h.latest {
		select {
		case c.send <- data:
		default:
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.MirrorClients.Set(float64(n))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.MirrorClients.Set(float64(n))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) PushSnapshot(ctx context.Context, collection string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", collection, err)
	}
	data, err := json.Marshal(Message{Type: typeSnapshot, Collection: collection, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	h.broadcast(collection, data, nil)
	metrics.IncrementMirrorSnapshot(collection, "out")
	return nil
}

func (h *Hub) OnRemoteUpdate(collection string, fn func(json.RawMessage)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers[collection] == nil {
		h.handlers[collection] = make(map[int]func(json.RawMessage))
	}
	id := h.nextID
	h.nextID++
	h.handlers[collection][id] = fn
	return func() {
		h.mu.Lock()
		delete(h.handlers[collection], id)
		h.mu.Unlock()
	}
}

// broadcast records data as the latest snapshot of collection and sends it
// to every client except skip.
func (h *Hub) broadcast(collection string, data []byte, skip *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[collection] = data
	for c := range h.clients {
		if c == skip {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Buffer full; the client catches up on the next snapshot.
		}
	}
}

// receive handles a frame read from a client.
func (h *Hub) receive(from *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("discarding malformed mirror message", "error", err)
		return
	}
	if msg.Type != typeSnapshot || msg.Collection == "" {
		h.logger.Warn("discarding unknown mirror message", "type", msg.Type, "collection", msg.Collection)
		return
	}
	metrics.IncrementMirrorSnapshot(msg.Collection, "in")

	h.broadcast(msg.Collection, data, from)

	h.mu.RLock()
	fns := make([]func(json.RawMessage), 0, len(h.handlers[msg.Collection]))
	for _, fn := range h.handlers[msg.Collection] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(msg.Data)
	}
}

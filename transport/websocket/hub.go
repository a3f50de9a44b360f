package websocket

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

const sendQueueSize = 32

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live connections and queues outbound events for them.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[string]*client),
	}
}

// Emit queues event for connID. Unknown connections and full queues drop the event.
func (that *Hub) Emit(connID string, event entity.Event) {
	log := that.logger.With("method", "Emit", "connID", connID, "event", event.Name)

	data, err := encodeEvent(event)
	if err != nil {
		log.Error("failed to encode event", "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	c, ok := that.clients[connID]
	if !ok {
		log.Debug("connection is gone, event dropped")
		return
	}

	select {
	case c.send <- data:
	default:
		log.Warn("send queue is full, event dropped")
	}
}

// Count returns the number of live connections.
func (that *Hub) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients)
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c.id] = c
}

// unregister forgets c and closes its queue, which stops its write pump.
func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[c.id]; !ok {
		return
	}

	delete(that.clients, c.id)
	close(c.send)
}

// closeAll closes every connection. Read pumps then unregister themselves.
func (that *Hub) closeAll() {
	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, c := range that.clients {
		_ = c.conn.Close()
	}
}

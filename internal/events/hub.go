package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bookgraph/pkg/models"
)

const sendBuffer = 64

// Hub keeps the set of feed subscribers and pushes every event to each of
// them. A subscriber that cannot keep up is dropped.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) Publish(_ context.Context, evt models.BookAdded) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		select {
		case s.send <- data:
		default:
			h.log.Warn("feed subscriber too slow, removing", zap.String("remote", s.remote))
			h.removeLocked(s)
		}
	}
	return nil
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber; later registrations are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.clients {
		h.removeLocked(s)
	}
}

func (h *Hub) register(conn *websocket.Conn, remote string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{hub: h, conn: conn, remote: remote, send: make(chan []byte, sendBuffer)}
	h.clients[s] = struct{}{}
	h.log.Info("feed subscriber connected", zap.String("remote", remote))
	return s, true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[s]; ok {
		h.removeLocked(s)
		h.log.Info("feed subscriber disconnected", zap.String("remote", s.remote))
	}
}

func (h *Hub) removeLocked(s *subscriber) {
	delete(h.clients, s)
	// writePump sends the close frame and closes the conn
	close(s.send)
}

package stream

import (
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const defaultBuffer = 16

// Hub fans values out to SSE subscribers. A subscriber that is not keeping
// up misses values instead of blocking the publisher.
type Hub[T any] struct {
	name   string
	buffer int
	logger aqm.Logger

	mu          sync.RWMutex
	subscribers map[string]chan T
	closed      bool
}

func NewHub[T any](name string, logger aqm.Logger) *Hub[T] {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Hub[T]{
		name:        name,
		buffer:      defaultBuffer,
		logger:      logger,
		subscribers: make(map[string]chan T),
	}
}

// Subscribe adds a subscriber and returns its id and channel. On a closed hub
// the channel is already closed.
func (h *Hub[T]) Subscribe() (string, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan T, h.buffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch

	h.logger.Debug("new stream subscriber", "stream", h.name, "subscriber_id", id, "total_subscribers", len(h.subscribers))
	return id, ch
}

func (h *Hub[T]) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
		h.logger.Debug("stream subscriber left", "stream", h.name, "subscriber_id", id, "total_subscribers", len(h.subscribers))
	}
}

func (h *Hub[T]) Broadcast(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- v:
		default:
			h.logger.Info("subscriber channel full, dropping value", "stream", h.name, "subscriber_id", id)
		}
	}
}

// Close closes every subscriber channel. Later subscribers get a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

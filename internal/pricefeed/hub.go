package pricefeed

import (
	"context"
	"log/slog"
	"sync"
)

// Hub delivers ticks to in-process subscribers. A subscriber that is not
// keeping up misses batches rather than stalling the publisher.
type Hub struct {
	log  *slog.Logger
	mu   sync.Mutex
	subs map[chan []Tick]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger, subs: map[chan []Tick]struct{}{}}
}

func (h *Hub) Publish(_ context.Context, ticks []Tick) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ticks:
		default:
			h.log.Warn("price subscriber lagging, dropping batch", "ticks", len(ticks))
		}
	}
	return nil
}

// Subscribe registers a new listener. Call cancel to unregister; the channel
// is closed afterwards.
func (h *Hub) Subscribe() (<-chan []Tick, func()) {
	ch := make(chan []Tick, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

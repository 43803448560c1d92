// Package stream fans committed ledger events out to in-process subscribers
// and keeps a bounded replay buffer for late attachers (the websocket
// firehose and tests).
package stream

import (
	"sync"

	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// DefaultBufferSize bounds the replay ring when no size is configured.
const DefaultBufferSize = 1024

// Hub is a thread-safe circular buffer of committed events with fan-out to
// subscribers. Publish never blocks: a subscriber that falls behind loses
// events rather than stalling the ledger path.
type Hub struct {
	mu     sync.RWMutex
	events []event.Event
	size   int
	head   int
	count  int
	subs   map[int64]chan event.Event
	nextID int64
	log    *logger.Logger
}

// NewHub creates a hub with the given replay capacity.
func NewHub(size int, log *logger.Logger) *Hub {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if log == nil {
		log = logger.NewDefault("stream")
	}
	return &Hub{
		events: make([]event.Event, size),
		size:   size,
		subs:   make(map[int64]chan event.Event),
		log:    log,
	}
}

// Publish records the events and delivers them to every subscriber.
func (h *Hub) Publish(events ...event.Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	for _, evt := range events {
		idx := (h.head + h.count) % h.size
		if h.count == h.size {
			h.head = (h.head + 1) % h.size
			idx = (h.head + h.count - 1) % h.size
		} else {
			h.count++
		}
		h.events[idx] = evt
	}
	subs := make([]chan event.Event, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, evt := range events {
		for _, ch := range subs {
			select {
			case ch <- evt:
			default:
				h.log.WithField("event", string(evt.Type)).Warn("subscriber lagging; event dropped")
			}
		}
	}
}

// Subscribe registers a consumer. The returned cancel func must be called to
// release the channel.
func (h *Hub) Subscribe(buffer int) (<-chan event.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan event.Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Recent returns up to n of the most recent events, oldest first.
func (h *Hub) Recent(n int) []event.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	out := make([]event.Event, 0, n)
	start := h.count - n
	for i := start; i < h.count; i++ {
		out = append(out, h.events[(h.head+i)%h.size])
	}
	return out
}

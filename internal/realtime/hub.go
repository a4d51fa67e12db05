package realtime

import "sync"

const subscriberBuffer = 64

// Hub broadcasts order events to all current subscribers. Sends never block:
// a subscriber whose buffer is full loses the event and is expected to
// recover via a snapshot fetch. There is no queue and no replay.
type Hub struct {
	mu   sync.Mutex
	subs map[chan OrderEvent]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan OrderEvent]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel plus an
// unsubscribe function. Calling unsubscribe closes the channel.
func (h *Hub) Subscribe() (<-chan OrderEvent, func()) {
	ch := make(chan OrderEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer room.
func (h *Hub) Publish(ev OrderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// full buffer, subscriber misses this event
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

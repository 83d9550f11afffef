package stream

import "sync"

// History is the bounded FIFO replay buffer of recently emitted events.
// Insertion order equals sequence order; eviction is the only deletion path.
type History struct {
	mu     sync.RWMutex
	max    int
	events []Event
}

// NewHistory creates a History holding at most max events.
func NewHistory(max int) *History {
	return &History{
		max:    max,
		events: make([]Event, 0, max),
	}
}

// Append records an event, evicting the oldest entry once the buffer is full.
func (h *History) Append(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) >= h.max {
		copy(h.events, h.events[1:])
		h.events = h.events[:len(h.events)-1]
	}
	h.events = append(h.events, e)
}

// After returns copies of all buffered events with a sequence id greater than
// lastSeen, in ascending sequence order.
func (h *History) After(lastSeen uint64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Event
	for _, e := range h.events {
		if e.Seq > lastSeen {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the current number of buffered events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

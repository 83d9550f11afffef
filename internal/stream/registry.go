package stream

import (
	"errors"
	"sync"
)

// ErrCapacityExceeded is returned when the registry is at its admission cap.
var ErrCapacityExceeded = errors.New("client capacity exceeded")

// Registry is the set of currently live connections, keyed by connection id.
// Membership mirrors "connections currently eligible to receive broadcasts".
type Registry struct {
	mu    sync.RWMutex
	max   int
	conns map[uint64]*Connection
}

// NewRegistry creates a Registry with a hard cap of max connections.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:   max,
		conns: make(map[uint64]*Connection),
	}
}

// Add registers a connection. Returns ErrCapacityExceeded when the cap is
// reached; nothing is mutated in that case.
func (r *Registry) Add(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conns) >= r.max {
		return ErrCapacityExceeded
	}
	r.conns[c.ID] = c
	return nil
}

// Remove deregisters a connection by id. Removing an absent id is a no-op;
// the return value reports whether the connection was present.
func (r *Registry) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Snapshot returns the live connections at this instant, in no particular
// order. Connections joining or leaving afterwards do not affect the caller's
// iteration.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Full reports whether the registry has reached its admission cap.
func (r *Registry) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns) >= r.max
}

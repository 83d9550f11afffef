package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbrook/beacon/internal/auth"
	"github.com/mbrook/beacon/internal/metrics"
)

// Any SSE line starting with a colon is ignored by clients; used to keep
// proxies from reaping quiet connections.
var keepaliveFrame = []byte(":keepalive\n\n")

// Connection is one subscriber's live stream session. The send channel is the
// exclusive write handle for this client: frames queued there are drained to
// the transport by ServeConn, and closing done terminates the stream.
type Connection struct {
	ID       uint64
	Identity *auth.Identity // nil for anonymous subscribers

	created   time.Time
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	delivered atomic.Uint64
}

func newConnection(id uint64, identity *auth.Identity, buffer int, now time.Time) *Connection {
	return &Connection{
		ID:       id,
		Identity: identity,
		created:  now,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// offer queues a frame without blocking. False means the connection is gone
// or its buffer is full; callers treat that as a per-connection delivery
// failure.
func (c *Connection) offer(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// flusher matches http.Flusher without depending on net/http.
type flusher interface {
	Flush()
}

// ServeConn writes the stream preamble and then pumps queued frames to w
// until the client context ends, the idle watchdog fires, or the hub shuts
// the connection down. Teardown happens exactly once here no matter which
// signal arrives first.
func (h *Hub) ServeConn(ctx context.Context, c *Connection, w io.Writer) error {
	defer h.Release(c)

	fl, _ := w.(flusher)
	flush := func() {
		if fl != nil {
			fl.Flush()
		}
	}

	// Reconnect hint, sent immediately after the stream headers.
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", h.retry.Milliseconds()); err != nil {
		return err
	}
	flush()

	idle := h.clk.NewTimer(h.idleTimeout)
	defer idle.Stop()
	keepalive := h.clk.NewTimer(h.keepAlive)
	defer keepalive.Stop()

	for {
		select {
		case frame := <-c.send:
			if _, err := w.Write(frame); err != nil {
				metrics.DeliveryFailures.Inc()
				h.log.Warn("write to client failed", "conn", c.ID, "error", err)
				return err
			}
			flush()
			c.delivered.Add(1)
			idle.Reset(h.idleTimeout)
			keepalive.Reset(h.keepAlive)

		case <-keepalive.C():
			if _, err := w.Write(keepaliveFrame); err != nil {
				return err
			}
			flush()
			keepalive.Reset(h.keepAlive)

		case <-idle.C():
			// Not an error: silence past the watchdog is a normal
			// lifecycle transition.
			metrics.IdleTimeouts.Inc()
			h.log.Info("idle timeout, closing connection", "conn", c.ID)
			return nil

		case <-c.done:
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

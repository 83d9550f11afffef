package stream

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbrook/beacon/internal/auth"
	"github.com/mbrook/beacon/internal/clock"
	"github.com/mbrook/beacon/internal/metrics"
)

// ErrHubClosed is returned by Admit after the hub has shut down.
var ErrHubClosed = errors.New("hub is closed")

// Config configures a Hub. Zero values fall back to defaults.
type Config struct {
	MaxClients  int           // hard admission cap
	MaxHistory  int           // replay buffer capacity
	IdleTimeout time.Duration // per-connection idle watchdog
	ChunkDelay  time.Duration // pause between chunked broadcast steps
	KeepAlive   time.Duration // interval between comment frames on a quiet stream
	Retry       time.Duration // client auto-reconnect hint
	Clock       clock.Clock
	Log         *slog.Logger
}

// Hub owns the connection registry, the replay buffer, and the emitter, and
// drives the admission and teardown lifecycle. One Hub per process; its
// lifetime is tied to server startup and shutdown.
type Hub struct {
	registry *Registry
	history  *History
	emitter  *Emitter
	clk      clock.Clock
	log      *slog.Logger

	idleTimeout time.Duration
	chunkDelay  time.Duration
	keepAlive   time.Duration
	retry       time.Duration

	nextConnID atomic.Uint64
	started    time.Time
	closed     atomic.Bool
}

// New creates a ready-to-use Hub.
func New(cfg Config) *Hub {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 100
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 100
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 3 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	history := NewHistory(cfg.MaxHistory)
	return &Hub{
		registry:    NewRegistry(cfg.MaxClients),
		history:     history,
		emitter:     &Emitter{history: history, log: cfg.Log},
		clk:         cfg.Clock,
		log:         cfg.Log,
		idleTimeout: cfg.IdleTimeout,
		chunkDelay:  cfg.ChunkDelay,
		keepAlive:   cfg.KeepAlive,
		retry:       cfg.Retry,
		started:     cfg.Clock.Now(),
	}
}

// AdmitRequest describes an incoming stream-open request.
type AdmitRequest struct {
	Identity *auth.Identity // nil for the anonymous variant
	LastSeen uint64         // resume hint; 0 = no replay
}

// Admit runs the admission path: capacity check, replay of buffered events
// newer than the resume hint, registration, and a welcome notice addressed
// only to the new connection. On capacity rejection nothing is allocated.
func (h *Hub) Admit(req AdmitRequest) (*Connection, error) {
	if h.closed.Load() {
		return nil, ErrHubClosed
	}

	// Buffer sized so a full replay can never overflow the send queue.
	buffer := h.history.max + 64
	conn := newConnection(h.nextConnID.Add(1), req.Identity, buffer, h.clk.Now())

	// Registration and replay happen under the emitter lock so a
	// reconnecting client never sees a replayed event queued after a newer
	// live one, and no concurrent emit lands between the two.
	h.emitter.mu.Lock()
	if err := h.registry.Add(conn); err != nil {
		h.emitter.mu.Unlock()
		metrics.AdmissionRejections.WithLabelValues("capacity").Inc()
		h.log.Warn("admission rejected, at capacity", "max_clients", h.registry.max)
		return nil, err
	}
	replayed := 0
	if req.LastSeen > 0 {
		for _, evt := range h.history.After(req.LastSeen) {
			if conn.offer(evt.Frame()) {
				replayed++
			} else {
				metrics.DeliveryFailures.Inc()
				h.log.Warn("replay delivery failed", "conn", conn.ID, "seq", evt.Seq)
			}
		}
	}
	h.emitter.mu.Unlock()

	metrics.ConnectionsAdmitted.Inc()
	metrics.ConnectionsActive.Set(float64(h.registry.Len()))
	if replayed > 0 {
		metrics.EventsReplayed.Add(float64(replayed))
	}

	subject := "anonymous"
	if conn.Identity != nil {
		subject = conn.Identity.SubjectID
	}
	h.log.Info("connection admitted",
		"conn", conn.ID, "subject", subject, "last_seen", req.LastSeen, "replayed", replayed)

	h.emitter.Emit(KindSystem, SystemPayload{
		Time:    h.clk.Now().Format(time.RFC3339),
		Message: "connected",
	}, []*Connection{conn})

	return conn, nil
}

// Release tears down a connection: deregistration plus closing its stream.
// Calling it for an already-released connection is a no-op, so racing a
// client close against an idle timeout is harmless.
func (h *Hub) Release(c *Connection) {
	if !h.registry.Remove(c.ID) {
		return
	}
	c.close()
	metrics.ConnectionsActive.Set(float64(h.registry.Len()))
	h.log.Info("connection closed", "conn", c.ID, "delivered", c.delivered.Load(), "connected_for", h.clk.Since(c.created))
}

// AtCapacity reports whether the next admission would be rejected.
// The admission endpoints check this before verifying credentials, keeping
// the capacity-before-auth ordering observable to clients.
func (h *Hub) AtCapacity() bool {
	return h.registry.Full()
}

// Close rejects future admissions and tears down every live connection.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	for _, c := range h.registry.Snapshot() {
		h.Release(c)
	}
	h.log.Info("hub closed")
}

// Status is a point-in-time snapshot of hub state.
type Status struct {
	Connections   int    `json:"connections"`
	MaxClients    int    `json:"max_clients"`
	HistorySize   int    `json:"history_size"`
	LastSeq       uint64 `json:"last_sequence_id"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Status returns a snapshot of hub state for reporting.
func (h *Hub) Status() Status {
	return Status{
		Connections:   h.registry.Len(),
		MaxClients:    h.registry.max,
		HistorySize:   h.history.Len(),
		LastSeq:       h.emitter.LastSeq(),
		UptimeSeconds: int64(h.clk.Since(h.started).Seconds()),
	}
}

package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mbrook/beacon/internal/metrics"
)

// Emitter assigns sequence identity to events, records them in the replay
// buffer, and fans frames out to target connections. The mutex serializes
// sequence assignment with the history append so insertion order always
// equals sequence order.
type Emitter struct {
	mu      sync.Mutex
	lastSeq uint64
	history *History
	log     *slog.Logger
}

// Emit builds the next event from payload, appends it to history, and
// delivers it to every target. One sequence id and one history entry are
// consumed per call no matter how many targets there are. A failed delivery
// to one target never aborts delivery to the rest.
// Returns the event and how many targets accepted it.
func (e *Emitter) Emit(kind Kind, payload any, targets []*Connection) (Event, int) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("marshal event payload", "kind", kind, "error", err)
		return Event{}, 0
	}

	e.mu.Lock()
	e.lastSeq++
	evt := Event{Seq: e.lastSeq, Kind: kind, Data: data}
	e.history.Append(evt)
	frame := evt.Frame()
	delivered := 0
	for _, c := range targets {
		if c.offer(frame) {
			delivered++
		} else {
			metrics.DeliveryFailures.Inc()
			e.log.Warn("event delivery failed", "conn", c.ID, "seq", evt.Seq)
		}
	}
	e.mu.Unlock()

	metrics.EventsEmitted.WithLabelValues(string(kind)).Inc()
	metrics.HistorySize.Set(float64(e.history.Len()))
	return evt, delivered
}

// LastSeq returns the most recently assigned sequence id.
func (e *Emitter) LastSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}

package stream

import (
	"strings"
	"time"

	"github.com/mbrook/beacon/internal/metrics"
)

// BroadcastAtomic delivers one message event to every live connection.
// Connections joining mid-broadcast are not guaranteed delivery; connections
// leaving simply fail their individual write and are skipped. Returns how
// many connections accepted the event.
func (h *Hub) BroadcastAtomic(text string) int {
	targets := h.registry.Snapshot()
	payload := MessagePayload{
		Time:    h.clk.Now().Format(time.RFC3339),
		Message: text,
	}
	evt, delivered := h.emitter.Emit(KindMessage, payload, targets)
	metrics.BroadcastsTotal.WithLabelValues("atomic").Inc()
	h.log.Info("broadcast", "seq", evt.Seq, "recipients", delivered)
	return delivered
}

// BroadcastChunked re-delivers text word by word: each step emits one
// partial-message event carrying the words accumulated so far, with floor
// percentage progress and isComplete set only on the final step, pausing the
// configured delay between steps. An empty registry short-circuits without
// constructing any event or consuming a sequence id. Once started, the
// broadcast runs to completion regardless of registry changes.
// Returns the delivery count of the final step.
func (h *Hub) BroadcastChunked(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 || h.registry.Len() == 0 {
		return 0
	}
	metrics.BroadcastsTotal.WithLabelValues("chunked").Inc()

	total := len(words)
	delivered := 0
	for i := range words {
		done := i + 1
		payload := PartialPayload{
			Time:       h.clk.Now().Format(time.RFC3339),
			Message:    strings.Join(words[:done], " "),
			IsComplete: done == total,
			Progress:   done * 100 / total,
		}
		// Each step sees the registry as it is then; the snapshot keeps
		// one step's fan-out consistent.
		_, delivered = h.emitter.Emit(KindPartial, payload, h.registry.Snapshot())
		if done < total {
			<-h.clk.After(h.chunkDelay)
		}
	}
	h.log.Info("chunked broadcast complete", "words", total, "recipients", delivered)
	return delivered
}

// Package stream implements the event-stream core: the registry of live
// subscriber connections, the bounded replay buffer, sequence-numbered event
// emission, admission control, and the broadcast engine.
package stream

import "fmt"

// Kind categorizes an event on the wire.
type Kind string

const (
	// KindSystem marks connection lifecycle notices.
	KindSystem Kind = "system"
	// KindMessage marks an atomic broadcast.
	KindMessage Kind = "message"
	// KindPartial marks one frame of a chunked broadcast.
	KindPartial Kind = "partial-message"
)

// Event is one unit of server-to-client pushed data, uniquely numbered.
// Immutable once emitted.
type Event struct {
	Seq  uint64
	Kind Kind
	Data []byte // JSON payload
}

// Frame renders the event as a single SSE frame, terminated by a blank line.
func (e Event) Frame() []byte {
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Kind, e.Data)
}

// SystemPayload is the body of a system event.
type SystemPayload struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// MessagePayload is the body of an atomic broadcast event.
type MessagePayload struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// PartialPayload is one accumulating frame of a chunked broadcast.
type PartialPayload struct {
	Time       string `json:"time"`
	Message    string `json:"message"`
	IsComplete bool   `json:"isComplete"`
	Progress   int    `json:"progress"` // 0..100, floor semantics
}

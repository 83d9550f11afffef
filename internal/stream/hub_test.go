package stream

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newTestHub(t *testing.T, maxClients, maxHistory int) *Hub {
	t.Helper()
	h := New(Config{
		MaxClients:  maxClients,
		MaxHistory:  maxHistory,
		IdleTimeout: time.Minute,
		ChunkDelay:  time.Millisecond,
		Retry:       3 * time.Second,
	})
	t.Cleanup(h.Close)
	return h
}

// parsedFrame is one decoded SSE frame.
type parsedFrame struct {
	seq  uint64
	kind Kind
	data string
}

func parseFrame(t *testing.T, frame []byte) parsedFrame {
	t.Helper()
	var p parsedFrame
	for _, line := range strings.Split(strings.TrimRight(string(frame), "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "id: "):
			seq, err := strconv.ParseUint(line[len("id: "):], 10, 64)
			if err != nil {
				t.Fatalf("bad id line %q: %v", line, err)
			}
			p.seq = seq
		case strings.HasPrefix(line, "event: "):
			p.kind = Kind(line[len("event: "):])
		case strings.HasPrefix(line, "data: "):
			p.data = line[len("data: "):]
		default:
			t.Fatalf("unexpected frame line %q", line)
		}
	}
	return p
}

// drain reads every frame currently queued on the connection.
func drain(t *testing.T, c *Connection) []parsedFrame {
	t.Helper()
	var out []parsedFrame
	for {
		select {
		case frame := <-c.send:
			out = append(out, parseFrame(t, frame))
		default:
			return out
		}
	}
}

func TestAdmitSendsWelcome(t *testing.T) {
	h := newTestHub(t, 4, 10)
	conn, err := h.Admit(AdmitRequest{})
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	frames := drain(t, conn)
	if len(frames) != 1 {
		t.Fatalf("got %d frames after admit, want 1 welcome", len(frames))
	}
	if frames[0].kind != KindSystem {
		t.Errorf("welcome kind = %q, want system", frames[0].kind)
	}
	if frames[0].seq != 1 {
		t.Errorf("welcome seq = %d, want 1", frames[0].seq)
	}

	var payload SystemPayload
	if err := json.Unmarshal([]byte(frames[0].data), &payload); err != nil {
		t.Fatalf("welcome payload not JSON: %v", err)
	}
	if payload.Message != "connected" {
		t.Errorf("welcome message = %q", payload.Message)
	}
}

func TestAdmissionCap(t *testing.T) {
	h := newTestHub(t, 2, 10)
	c1, err := h.Admit(AdmitRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Admit(AdmitRequest{}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.Admit(AdmitRequest{}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("third Admit error = %v, want ErrCapacityExceeded", err)
	}
	if got := h.registry.Len(); got != 2 {
		t.Errorf("registry len = %d after rejection, want 2", got)
	}

	// After one teardown the next admission succeeds.
	h.Release(c1)
	if _, err := h.Admit(AdmitRequest{}); err != nil {
		t.Errorf("Admit after Release error = %v", err)
	}
}

func TestConnectionIDsUnique(t *testing.T) {
	h := newTestHub(t, 8, 10)
	seen := make(map[uint64]bool)
	for i := 0; i < 5; i++ {
		conn, err := h.Admit(AdmitRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if seen[conn.ID] {
			t.Fatalf("duplicate connection id %d", conn.ID)
		}
		seen[conn.ID] = true
	}
}

func TestReplayAfterReconnect(t *testing.T) {
	h := newTestHub(t, 4, 10)

	// Fill history; broadcasts with no subscribers still consume
	// sequence ids and history entries.
	for i := 0; i < 5; i++ {
		h.BroadcastAtomic("msg " + strconv.Itoa(i))
	}

	conn, err := h.Admit(AdmitRequest{LastSeen: 2})
	if err != nil {
		t.Fatal(err)
	}
	frames := drain(t, conn)

	// Events 3,4,5 replayed in ascending order, then the welcome with a
	// fresh sequence id. Replay must not re-increment the counter.
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 3 replayed + 1 welcome", len(frames))
	}
	for i, want := range []uint64{3, 4, 5} {
		if frames[i].seq != want {
			t.Errorf("replayed frame %d seq = %d, want %d", i, frames[i].seq, want)
		}
		if frames[i].kind != KindMessage {
			t.Errorf("replayed frame %d kind = %q", i, frames[i].kind)
		}
	}
	if frames[3].kind != KindSystem || frames[3].seq != 6 {
		t.Errorf("welcome frame = %+v, want system seq 6", frames[3])
	}
}

func TestReplayNothingNewer(t *testing.T) {
	h := newTestHub(t, 4, 10)
	h.BroadcastAtomic("one")
	h.BroadcastAtomic("two")

	conn, err := h.Admit(AdmitRequest{LastSeen: 2})
	if err != nil {
		t.Fatal(err)
	}
	frames := drain(t, conn)
	if len(frames) != 1 || frames[0].kind != KindSystem {
		t.Errorf("expected only the welcome frame, got %+v", frames)
	}
}

func TestReplayRespectsEviction(t *testing.T) {
	h := newTestHub(t, 4, 3)
	for i := 0; i < 5; i++ {
		h.BroadcastAtomic("msg " + strconv.Itoa(i))
	}

	// Only seqs 3..5 remain buffered; asking from 0 replays just those.
	conn, err := h.Admit(AdmitRequest{LastSeen: 1})
	if err != nil {
		t.Fatal(err)
	}
	frames := drain(t, conn)
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 3 replayed + welcome", len(frames))
	}
	if frames[0].seq != 3 {
		t.Errorf("first replayed seq = %d, want 3 (oldest surviving)", frames[0].seq)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	h := newTestHub(t, 4, 10)
	conn, err := h.Admit(AdmitRequest{})
	if err != nil {
		t.Fatal(err)
	}

	h.Release(conn)
	if got := h.registry.Len(); got != 0 {
		t.Fatalf("registry len = %d after release, want 0", got)
	}
	// A racing second teardown (client close vs idle timeout) is a no-op.
	h.Release(conn)
	if got := h.registry.Len(); got != 0 {
		t.Errorf("registry len = %d after double release, want 0", got)
	}
}

func TestAdmitAfterClose(t *testing.T) {
	h := New(Config{MaxClients: 2, MaxHistory: 4})
	conn, err := h.Admit(AdmitRequest{})
	if err != nil {
		t.Fatal(err)
	}
	h.Close()

	select {
	case <-conn.done:
	default:
		t.Error("Close should terminate live connections")
	}
	if _, err := h.Admit(AdmitRequest{}); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Admit after Close error = %v, want ErrHubClosed", err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	h := newTestHub(t, 4, 10)
	h.Admit(AdmitRequest{})
	h.BroadcastAtomic("hello")

	st := h.Status()
	if st.Connections != 1 {
		t.Errorf("Connections = %d, want 1", st.Connections)
	}
	if st.MaxClients != 4 {
		t.Errorf("MaxClients = %d, want 4", st.MaxClients)
	}
	// Welcome + broadcast.
	if st.LastSeq != 2 {
		t.Errorf("LastSeq = %d, want 2", st.LastSeq)
	}
	if st.HistorySize != 2 {
		t.Errorf("HistorySize = %d, want 2", st.HistorySize)
	}
}

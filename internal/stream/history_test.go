package stream

import "testing"

func TestHistoryBound(t *testing.T) {
	h := NewHistory(3)
	for seq := uint64(1); seq <= 5; seq++ {
		h.Append(Event{Seq: seq, Kind: KindMessage, Data: []byte(`{}`)})
		if h.Len() > 3 {
			t.Fatalf("Len() = %d after append %d, exceeds cap 3", h.Len(), seq)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}

	// The two oldest events must have been evicted.
	got := h.After(0)
	if len(got) != 3 {
		t.Fatalf("After(0) returned %d events, want 3", len(got))
	}
	for i, want := range []uint64{3, 4, 5} {
		if got[i].Seq != want {
			t.Errorf("After(0)[%d].Seq = %d, want %d", i, got[i].Seq, want)
		}
	}
}

func TestHistoryAfter(t *testing.T) {
	h := NewHistory(10)
	for seq := uint64(1); seq <= 6; seq++ {
		h.Append(Event{Seq: seq, Kind: KindMessage})
	}

	got := h.After(4)
	if len(got) != 2 {
		t.Fatalf("After(4) returned %d events, want 2", len(got))
	}
	if got[0].Seq != 5 || got[1].Seq != 6 {
		t.Errorf("After(4) = seqs %d,%d; want 5,6", got[0].Seq, got[1].Seq)
	}

	if got := h.After(6); len(got) != 0 {
		t.Errorf("After(6) returned %d events, want 0", len(got))
	}
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(4)
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	if got := h.After(0); len(got) != 0 {
		t.Errorf("After(0) on empty history returned %d events", len(got))
	}
}

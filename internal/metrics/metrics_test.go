package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTextfile(t *testing.T) {
	ConnectionsAdmitted.Inc()
	EventsEmitted.WithLabelValues("message").Inc()

	path := filepath.Join(t.TempDir(), "beacon.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "beacon_connections_admitted_total") {
		t.Error("output missing beacon_connections_admitted_total")
	}
	if !strings.Contains(out, "beacon_events_emitted_total") {
		t.Error("output missing beacon_events_emitted_total")
	}
	if strings.Contains(out, "go_goroutines") {
		t.Error("output should only contain beacon_ metrics")
	}

	// The temp file must not be left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after atomic write")
	}
}

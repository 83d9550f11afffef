package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBroadcastNoSubscribers(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/broadcast", `{"message":"into the void"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp broadcastResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Recipients != 0 || resp.Message != "into the void" {
		t.Errorf("response = %+v", resp)
	}
}

func TestBroadcastDefaultMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	for _, body := range []string{`{}`, `{"message":"  "}`, `not json`, ``} {
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/broadcast", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("body %q: status = %d, want 200", body, rec.Code)
		}
		var resp broadcastResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Message != defaultMessage {
			t.Errorf("body %q: message = %q, want default placeholder", body, resp.Message)
		}
	}
}

func TestBroadcastStreamRespondsImmediately(t *testing.T) {
	srv, hub, _ := newTestServer(t, 4)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/broadcast/stream", `{"message":"a b c"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp broadcastResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Recipients != hub.Status().Connections {
		t.Errorf("recipients = %d, want registry size at call time", resp.Recipients)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	srv, _, svc := newTestServer(t, 4)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/login", `{"username":"admin","password":"changeme1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	identity, err := svc.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if identity.Role != "admin" {
		t.Errorf("role = %q, want admin", identity.Role)
	}

	// The token cookie is set too.
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "beacon_token" && c.Value == resp.Token {
			found = true
		}
	}
	if !found {
		t.Error("login response missing token cookie")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/login", `{"username":"admin","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/login", `{"username":"","password":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty credentials: status = %d, want 400", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/logout", ``)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "beacon_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not clear the token cookie")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, hub, _ := newTestServer(t, 7)
	hub.BroadcastAtomic("warm up")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st struct {
		MaxClients  int    `json:"max_clients"`
		LastSeq     uint64 `json:"last_sequence_id"`
		Connections int    `json:"connections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.MaxClients != 7 {
		t.Errorf("max_clients = %d, want 7", st.MaxClients)
	}
	if st.LastSeq != 1 {
		t.Errorf("last_sequence_id = %d, want 1", st.LastSeq)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

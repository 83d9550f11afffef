package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mbrook/beacon/internal/auth"
	"github.com/mbrook/beacon/internal/metrics"
	"github.com/mbrook/beacon/internal/stream"
)

// handleEvents opens the anonymous event stream. The connection stays open
// until the client disconnects, the idle watchdog fires, or the server shuts
// down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.serveStream(w, r, nil)
}

// handleEventsSecure opens the authenticated event stream. The capacity check
// runs before token verification, matching the anonymous path; only then is
// the bearer token (header, query parameter, or cookie) verified.
func (s *Server) handleEventsSecure(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub.AtCapacity() {
		metrics.AdmissionRejections.WithLabelValues("capacity").Inc()
		writeError(w, http.StatusServiceUnavailable, "client capacity exceeded")
		return
	}

	token := auth.TokenFromRequest(r)
	if token == "" {
		metrics.AdmissionRejections.WithLabelValues("unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	identity, err := s.deps.Auth.Verify(token)
	if err != nil {
		metrics.AdmissionRejections.WithLabelValues("unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	s.serveStream(w, r, identity)
}

// serveStream runs admission and then pumps the event stream to the client.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	conn, err := s.deps.Hub.Admit(stream.AdmitRequest{
		Identity: identity,
		LastSeen: lastSeenID(r),
	})
	if err != nil {
		if errors.Is(err, stream.ErrCapacityExceeded) {
			// Capacity rejection allocates nothing; the client may retry.
			writeError(w, http.StatusServiceUnavailable, "client capacity exceeded")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	_ = s.deps.Hub.ServeConn(r.Context(), conn, w)
}

// lastSeenID extracts the client's resume hint: the Last-Event-ID header set
// by reconnecting EventSource clients, or the lastEventId query parameter.
func lastSeenID(r *http.Request) uint64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbrook/beacon/internal/auth"
	"github.com/mbrook/beacon/internal/stream"
)

// Dependencies defines what the web server needs from the rest of the
// application.
type Dependencies struct {
	Hub  *stream.Hub
	Auth *auth.Service
	Log  *slog.Logger

	// CookieSecure marks issued token cookies as HTTPS-only.
	CookieSecure bool
}

// Server is the Beacon HTTP server: the two stream admission endpoints, the
// broadcast triggers, and the credential endpoints.
type Server struct {
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a Server with all routes registered.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps: deps,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Stream admission.
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /events/secure", s.handleEventsSecure)

	// Broadcast triggers.
	s.mux.HandleFunc("POST /api/broadcast", s.apiBroadcast)
	s.mux.HandleFunc("POST /api/broadcast/stream", s.apiBroadcastStream)

	// Credentials.
	s.mux.HandleFunc("POST /api/login", s.apiLogin)
	s.mux.HandleFunc("POST /api/logout", s.apiLogout)

	// Operational.
	s.mux.HandleFunc("GET /api/status", s.apiStatus)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		// SSE connections are long-lived; the hub's idle watchdog bounds
		// them instead of a write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	s.deps.Log.Info("beacon listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// clientIP extracts the IP address from r.RemoteAddr, stripping the port.
// Falls back to the raw RemoteAddr if parsing fails.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

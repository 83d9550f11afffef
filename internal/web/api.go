package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mbrook/beacon/internal/auth"
)

// defaultMessage substitutes for a missing or empty broadcast body.
// A trigger without a message is not an error.
const defaultMessage = "(no message provided)"

type broadcastResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Recipients int    `json:"recipients"`
}

// broadcastText pulls the message out of a trigger request body, falling back
// to the default placeholder on malformed or empty payloads.
func broadcastText(r *http.Request) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return defaultMessage
	}
	if strings.TrimSpace(body.Message) == "" {
		return defaultMessage
	}
	return body.Message
}

// apiBroadcast delivers one message to every connected client at once.
func (s *Server) apiBroadcast(w http.ResponseWriter, r *http.Request) {
	text := broadcastText(r)
	delivered := s.deps.Hub.BroadcastAtomic(text)
	writeJSON(w, http.StatusOK, broadcastResponse{
		Success:    true,
		Message:    text,
		Recipients: delivered,
	})
}

// apiBroadcastStream starts a chunked broadcast and returns immediately; the
// chunks stream asynchronously to all current connections. Recipients counts
// the registry at call time.
func (s *Server) apiBroadcastStream(w http.ResponseWriter, r *http.Request) {
	text := broadcastText(r)
	recipients := s.deps.Hub.Status().Connections
	go s.deps.Hub.BroadcastChunked(text)
	writeJSON(w, http.StatusOK, broadcastResponse{
		Success:    true,
		Message:    text,
		Recipients: recipients,
	})
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      auth.Identity `json:"user"`
}

// apiLogin issues a bearer token for a username/password pair.
func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	ip := clientIP(r)
	token, identity, expiresAt, err := s.deps.Auth.Login(body.Username, body.Password, ip)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid username or password")
		default:
			s.deps.Log.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	maxAge := int(time.Until(expiresAt).Seconds())
	auth.SetTokenCookie(w, token, maxAge, s.deps.CookieSecure)
	s.deps.Log.Info("user logged in", "username", body.Username, "ip", ip)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      identity,
	})
}

// apiLogout clears the token cookie. Tokens stay valid until expiry; the
// server holds no session state to revoke.
func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, s.deps.CookieSecure)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// apiStatus reports a snapshot of hub state.
func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Hub.Status())
}

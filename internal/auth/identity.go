package auth

import "net/http"

const TokenCookieName = "beacon_token"

// Identity is the authenticated-subject claim attached to a stream connection.
type Identity struct {
	SubjectID   string `json:"sub"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
}

// TokenFromRequest extracts a bearer token from the request, checking the
// Authorization header, then the "token" query parameter, then the token
// cookie. The first carrier present wins.
func TokenFromRequest(r *http.Request) string {
	if bearer := ExtractBearerToken(r.Header.Get("Authorization")); bearer != "" {
		return bearer
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetTokenCookie sets the bearer token cookie on the response.
func SetTokenCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// ClearTokenCookie removes the bearer token cookie. Logout is purely
// client-side; the server keeps no session state to invalidate.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

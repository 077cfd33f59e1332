package auth

import (
	"net/http"
	"time"
)

// SessionCookie describes the cookie carrying the session token
type SessionCookie struct {
	// Name is the cookie name
	Name string

	// Secure forces the Secure attribute, for deployments where TLS ends
	// at a proxy in front of the gate
	Secure bool
}

// IsSecure reports whether cookies written for r must be marked Secure
func (c SessionCookie) IsSecure(r *http.Request) bool {
	return c.Secure || r.TLS != nil
}

// Set writes the session token cookie
func (c SessionCookie) Set(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.IsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// Clear expires the session token cookie
func (c SessionCookie) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.IsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

package session

import (
	"net/http"
	"time"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "authToken"

// Cookie writes and reads the session cookie.
type Cookie struct {
	Name   string
	Secure bool
}

// NewCookie returns the cookie transport. Secure is only set in production so
// the cookie still travels over plain HTTP during local development.
func NewCookie(name string, production bool) Cookie {
	if name == "" {
		name = DefaultCookieName
	}
	return Cookie{Name: name, Secure: production}
}

// Set writes token as an HttpOnly, SameSite=Strict cookie that expires with it.
func (c Cookie) Set(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the cookie on the client.
func (c Cookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read returns the token carried by the request cookie, or "".
func (c Cookie) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	cartCookie    = "taberna_cart"
	sessionCookie = "taberna_session"
)

// CookieConfig controls the cart and session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
	// CartMaxAge and SessionMaxAge bound the cookie lifetime. Zero makes them
	// browser-session cookies.
	CartMaxAge    time.Duration
	SessionMaxAge time.Duration
}

// cookieID returns the id stored in cookie name. Values that are not UUIDs
// are ignored so clients cannot choose storage keys.
func cookieID(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// cartID returns the caller's cart id, issuing a cookie for a new one.
func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := cookieID(r, cartCookie); ok {
		return id
	}
	id := uuid.NewString()
	h.setCookie(w, cartCookie, id, h.cookies.CartMaxAge)
	return id
}

// newSessionID returns a fresh session id. Login and registration never
// reuse the id the browser sent.
func newSessionID() string {
	return uuid.NewString()
}

package tokenstore

import (
	"net/http"
	"time"
)

const (
	CookieName = "orderToken"
	HeaderName = "X-Order-Token"
	MaxAge     = 30 * 24 * time.Hour
)

type Options struct {
	// Secure switches the cookie to Secure + SameSite=None (non-development builds).
	Secure bool
}

// Store produces per-request bindings of the shopper's cart token.
type Store struct {
	secure bool
}

func New(opts Options) *Store {
	return &Store{secure: opts.Secure}
}

// Bind returns the token slot for one HTTP exchange.
func (s *Store) Bind(w http.ResponseWriter, r *http.Request) *Binding {
	return &Binding{store: s, w: w, r: r}
}

// Binding reads the cart token from the request cookie (falling back to the
// mirror header) and writes changes to the response. A token written during
// the request supersedes whatever the request carried.
type Binding struct {
	store   *Store
	w       http.ResponseWriter
	r       *http.Request
	written bool
	token   string
}

func (b *Binding) Read() (string, bool) {
	if b.written {
		return b.token, b.token != ""
	}
	if c, err := b.r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	if v := b.r.Header.Get(HeaderName); v != "" {
		return v, true
	}
	return "", false
}

func (b *Binding) Write(token string) {
	b.written = true
	b.token = token
	http.SetCookie(b.w, b.store.cookie(token, int(MaxAge.Seconds())))
	b.w.Header().Set(HeaderName, token)
}

func (b *Binding) Clear() {
	b.written = true
	b.token = ""
	http.SetCookie(b.w, b.store.cookie("", -1))
	b.w.Header().Del(HeaderName)
}

func (s *Store) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	}
	if s.secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

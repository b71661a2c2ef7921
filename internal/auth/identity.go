package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenCookie = "customerToken"
	IRICookie   = "customerIri"

	cookieMaxAge = 7 * 24 * time.Hour
)

var (
	ErrNoIdentity       = errors.New("no customer identity")
	ErrIdentityMismatch = errors.New("customer cookie does not match token")
)

type ctxKey struct{}

// Identify reads the customer identity from the request cookies. The token is
// issued and verified by the commerce backend; here its claims are only read
// to reject expired tokens, to learn the customer's email and to check that
// the IRI cookie names the customer the token was issued to.
func Identify(r *http.Request) (*domain.Customer, error) {
	tc, err := r.Cookie(TokenCookie)
	if err != nil || tc.Value == "" {
		return nil, ErrNoIdentity
	}
	ic, err := r.Cookie(IRICookie)
	if err != nil || ic.Value == "" {
		return nil, ErrNoIdentity
	}

	claims, err := readClaims(tc.Value, time.Now())
	if err != nil {
		return nil, err
	}
	if ref, ok := customerRef(claims); ok && !sameCustomer(ref, ic.Value) {
		return nil, fmt.Errorf("%w: token names %q", ErrIdentityMismatch, ref)
	}
	return &domain.Customer{IRI: ic.Value, Email: stringClaim(claims, "email", "username"), Token: tc.Value}, nil
}

func readClaims(raw string, now time.Time) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse customer token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("customer token expiry: %w", err)
	}
	if exp != nil && !exp.After(now) {
		return nil, fmt.Errorf("customer token: %w", jwt.ErrTokenExpired)
	}
	return claims, nil
}

// customerRef returns the customer IRI or id the token carries, if any.
func customerRef(claims jwt.MapClaims) (string, bool) {
	for _, key := range []string{"customer", "iri", "sub", "id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatInt(int64(v), 10), true
		}
	}
	return "", false
}

// sameCustomer accepts either the full IRI or its trailing id.
func sameCustomer(ref, iri string) bool {
	if ref == iri {
		return true
	}
	return path.Base(iri) == ref && !strings.Contains(ref, "/")
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Middleware attaches the customer identity, when present, to the request
// context. Requests without a valid identity continue as guests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, err := Identify(r)
		if err != nil {
			if !errors.Is(err, ErrNoIdentity) {
				ClearCookies(w)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomer(r.Context(), customer)))
	})
}

func WithCustomer(ctx context.Context, customer *domain.Customer) context.Context {
	return context.WithValue(ctx, ctxKey{}, customer)
}

// FromContext returns the authenticated customer or nil for guests.
func FromContext(ctx context.Context) *domain.Customer {
	customer, _ := ctx.Value(ctxKey{}).(*domain.Customer)
	return customer
}

func SetCookies(w http.ResponseWriter, customer *domain.Customer, secure bool) {
	http.SetCookie(w, cookie(TokenCookie, customer.Token, int(cookieMaxAge.Seconds()), secure))
	http.SetCookie(w, cookie(IRICookie, customer.IRI, int(cookieMaxAge.Seconds()), secure))
}

func ClearCookies(w http.ResponseWriter) {
	http.SetCookie(w, cookie(TokenCookie, "", -1, false))
	http.SetCookie(w, cookie(IRICookie, "", -1, false))
}

func cookie(name, value string, maxAge int, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

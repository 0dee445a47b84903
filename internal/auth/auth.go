// Package auth is the household's shared-password gate. There are no
// sessions and no roles: a request is authorized when the credential it
// carries equals the one configured secret.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// CookieName is the long-lived cookie set by the login endpoint.
const CookieName = "hearth_auth"

// Equal compares a submitted credential against the secret in constant
// time. An empty secret authorizes nothing.
func Equal(submitted, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(secret)) == 1
}

// Credential extracts the submitted credential from a request: the auth
// cookie, a bearer token, or a ?token= query parameter, in that order.
// Returns "" when none is present.
func Credential(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

// IsAuthorized reports whether the request carries the configured secret.
func IsAuthorized(r *http.Request, secret string) bool {
	return Equal(Credential(r), secret)
}

// SetCookie attaches the long-lived auth cookie to a response.
func SetCookie(w http.ResponseWriter, secret string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    secret,
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 365,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

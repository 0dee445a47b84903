package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rowanhall/hearth/internal/auth"
)

// RequireAuth gates requests behind the shared household password. The
// 401 body never says which check failed.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.IsAuthorized(r, secret) {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireToken gates scheduled endpoints behind an optional token. When no
// token is configured the endpoint is open; the caller is expected to have
// logged that at startup.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && !auth.IsAuthorized(r, token) {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

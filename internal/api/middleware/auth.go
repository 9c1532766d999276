package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminAuth requires HTTP basic auth with password when one is configured.
// An empty password leaves the API open, which is only safe on loopback.
func AdminAuth(password string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="Launcher Accounts"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": {"message": "Invalid admin password", "type": "authentication_error"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

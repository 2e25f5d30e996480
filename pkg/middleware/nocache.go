package middleware

import "net/http"

// NoStore sets Cache-Control headers preventing intermediaries and browsers
// from caching responses. Mounted on routes that return tokens or user data.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

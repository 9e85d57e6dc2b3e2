package middleware

import (
	"net/http"
)

// CacheControl returns a middleware that sets the Cache-Control header on GET
// responses. Handlers may still override it.
func CacheControl(directive string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", directive)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks GET responses as uncacheable. Cart reads are per-session and
// change on every mutation.
func NoStore() func(http.Handler) http.Handler {
	return CacheControl("no-store")
}

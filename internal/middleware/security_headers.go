package middleware

import "net/http"

// apiCSP locks the whole document surface down: the service renders no
// markup, and downloaded files must never execute in a page context.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders sets response headers for a JSON API that also serves
// raw file downloads.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Download bodies carry user-supplied bytes; browsers must not
		// sniff a different content type than the one we declare.
		w.Header().Set("X-Content-Type-Options", "nosniff")

		w.Header().Set("Content-Security-Policy", apiCSP)
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		// Responses are per-account or tied to a revocable share token;
		// shared caches must not hold any of them.
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// Package middleware provides HTTP middleware for the tutoring API.
package middleware

import "net/http"

// AllowedHeaders lists the request headers browsers may send cross-origin.
const AllowedHeaders = "authorization, x-client-info, apikey, content-type"

// CORS returns middleware that handles CORS headers. Pre-flight requests are
// answered with 200 and an empty body.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			wildcard := false
			for _, o := range allowedOrigins {
				if o == "*" {
					allowed, wildcard = true, true
					break
				}
				if o == origin {
					allowed = true
					break
				}
			}

			if allowed {
				switch {
				case origin == "":
					w.Header().Set("Access-Control-Allow-Origin", "*")
				default:
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", AllowedHeaders)
				// Credentials only for explicit origins; echoing a wildcard
				// match with credentials enables CSRF.
				if !wildcard && origin != "" {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

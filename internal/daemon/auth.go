package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	expected := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="jobsift"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		next(w, r)
	}
}

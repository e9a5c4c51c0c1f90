package proxy

import (
	"net/http"
	"strings"
)

func bearerToken(h http.Header) string {
	auth := h.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func tokenAllowed(token string, allowed []string) bool {
	if token == "" {
		return false
	}
	for _, t := range allowed {
		if token == t {
			return true
		}
	}
	return false
}

// authMiddleware rejects callers whose bearer token is not on the static
// allow-list, before any upstream call is made.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tokenAllowed(bearerToken(r.Header), s.cfg.AuthTokens) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid_request_error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package daemon

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"deepshield/internal/api"
	"deepshield/internal/auth"
)

// statusAuth guards operator endpoints with a static bearer token. An empty
// token leaves the endpoint open.
func statusAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := auth.BearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Message: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

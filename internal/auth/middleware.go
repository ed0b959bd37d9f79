package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"deepshield/internal/services"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireUser rejects requests without a valid bearer token and stores the
// caller's user id in the request context.
func (s *Service) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "No token provided")
			return
		}
		user, err := s.Authenticate(r.Context(), raw)
		if err != nil {
			writeUnauthorized(w, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(services.WithUserID(r.Context(), user.ID)))
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

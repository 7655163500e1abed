package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RequireAdmin guards the review endpoints. Two credentials are accepted: a
// bearer JWT signed with signingKey carrying "role": "admin", or the static
// X-Admin-Token header compared in constant time. Either may be disabled by
// leaving its key empty.
func RequireAdmin(adminToken string, signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorized(r, adminToken, signingKey) {
				next.ServeHTTP(w, r)
				return
			}
			logger.WarnContext(r.Context(), "admin authentication failed", "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin credentials required"}`))
		})
	}
}

func authorized(r *http.Request, adminToken string, signingKey []byte) bool {
	if adminToken != "" {
		token := r.Header.Get("X-Admin-Token")
		if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) == 1 {
			return true
		}
	}
	if len(signingKey) > 0 {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw != "" && validAdminJWT(raw, signingKey) {
			return true
		}
	}
	return false
}

func validAdminJWT(raw string, signingKey []byte) bool {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return signingKey, nil
	})
	if err != nil || !token.Valid {
		return false
	}
	role, _ := claims["role"].(string)
	return role == "admin"
}

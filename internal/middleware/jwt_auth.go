package middleware

import (
	"net/http"
	"strings"

	"github.com/jballard86/frigate-push-gateway/internal/tokens"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*tokens.Claims, error)
}

type JWTAuth struct {
	tokens TokenValidator
}

func NewJWTAuth(t TokenValidator) *JWTAuth {
	return &JWTAuth{tokens: t}
}

// Middleware verifies the device JWT and injects DeviceContext.
func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil || claims.DeviceID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		dc := &DeviceContext{
			DeviceID: claims.DeviceID,
			Platform: claims.Platform,
			TokenID:  claims.ID,
		}
		next.ServeHTTP(w, r.WithContext(WithDeviceContext(r.Context(), dc)))
	})
}

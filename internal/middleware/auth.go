package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hikyaku-io/dataport/internal/utils"
)

type contextKey string

// UserContextKey holds the validated JWT claims.
const UserContextKey contextKey = "user"

// TenantContextKey holds the tenant ID extracted from the token.
const TenantContextKey contextKey = "tenant"

// Auth verifies Bearer tokens and scopes the request to the token's tenant.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			tenantID, err := utils.TenantFromClaims(claims)
			if err != nil {
				http.Error(w, "Token has no tenant scope", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			ctx = context.WithValue(ctx, TenantContextKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantID reads the tenant scope set by Auth.
func TenantID(r *http.Request) string {
	if v, ok := r.Context().Value(TenantContextKey).(string); ok {
		return v
	}
	return ""
}

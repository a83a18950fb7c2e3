package http

import (
	"context"
	"net/http"
	"strings"

	"deposit-backend/internal/logger"
	"deposit-backend/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "api_claims"

// AuthMiddleware rejects requests without a valid bearer token
func AuthMiddleware(tokens security.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "missing_token", "bearer token required")
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the authenticated token claims, if any
func ClaimsFromContext(ctx context.Context) (*security.APIClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*security.APIClaims)
	return claims, ok
}

// Scopes the deposit API distinguishes. Tokens carrying no scope list
// are unrestricted.
const (
	ScopeDepositsRead  = "deposits:read"
	ScopeDepositsWrite = "deposits:write"
)

// RequireScope rejects authenticated requests whose token does not
// grant the named scope. Must run after AuthMiddleware.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.HasScope(scope) {
				respondError(w, http.StatusForbidden, "insufficient_scope", "token does not grant "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs one line per request
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

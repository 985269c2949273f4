package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/txengine/internal/models"
)

const tokenKey contextKey = "token"

// Authenticator is satisfied by *auth.Service (internal/auth); kept as
// an interface here so the HTTP layer doesn't import the concrete JWT
// implementation.
type Authenticator interface {
	Verify(raw string) (models.Token, error)
}

// Auth extracts the bearer token, verifies it, and stores the resolved
// models.Token in the request context for handlers to read.
func Auth(authenticator Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			raw := strings.TrimPrefix(authHeader, "Bearer ")
			if raw == authHeader {
				http.Error(w, "invalid authorization format", http.StatusUnauthorized)
				return
			}

			token, err := authenticator.Verify(raw)
			if err != nil {
				http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext extracts the authenticated models.Token a handler
// passes down into TransactionsService.
func TokenFromContext(ctx context.Context) (models.Token, bool) {
	token, ok := ctx.Value(tokenKey).(models.Token)
	return token, ok
}

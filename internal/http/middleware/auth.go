package middleware

import (
	"context"
	"net/http"
	"strings"

	"apgc/backend/internal/auth"
)

type contextKey string

const operatorKey contextKey = "operator"

func OperatorFromContext(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(operatorKey).(string)
	return val, ok && val != ""
}

// WithOperator stores the authenticated operator id on ctx.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

func OperatorAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing Authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeJSONError(w, http.StatusUnauthorized, "invalid Authorization")
				return
			}
			claims, err := auth.ParseOperatorToken(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), claims.Operator)))
		})
	}
}

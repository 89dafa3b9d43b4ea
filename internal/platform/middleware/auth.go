package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SessionValidator validates one-time verification session tokens.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*SessionClaims, error)
}

// SessionClaims are the facts a verification session binds.
type SessionClaims struct {
	SessionID   string
	ProviderID  string
	UserAddress string
}

type contextKeySession struct{}

// ContextKeySession is exported for handler tests.
var ContextKeySession = contextKeySession{}

// GetSession retrieves the validated session from the context, or nil.
func GetSession(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(ContextKeySession).(*SessionClaims)
	return claims
}

// OptionalSession validates a ?session= token when one is present. Requests
// without a token pass through; an invalid token is rejected with 401.
// A nil validator disables the check.
func OptionalSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.URL.Query().Get("session"))
			if token == "" || validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := validator.ValidateSession(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "rejected verification session",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized","message":"Invalid, expired or reused session"}`))
				return
			}

			ctx = context.WithValue(ctx, ContextKeySession, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

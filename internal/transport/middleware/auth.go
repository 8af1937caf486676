package middleware

import (
	"net/http"

	"github.com/rmaulana/iam-service/internal/auth"
	"github.com/rmaulana/iam-service/pkg/logger"
)

// UserContext enriches the request-scoped logger with the authenticated
// user. Must run after the auth middleware has populated the context.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := auth.UserFromContext(r.Context()); ok && user != nil {
			ctx := logger.With(r.Context(), "user_key", user.UserKey)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

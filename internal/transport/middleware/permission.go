package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rmaulana/iam-service/internal/auth"
	"github.com/rmaulana/iam-service/internal/permission"
)

// Evaluator is the slice of the permission engine the HTTP layer needs.
type Evaluator interface {
	Authorize(ctx context.Context, principal *permission.Principal, reqs permission.Requirements) error
	AuthorizeCustom(ctx context.Context, principal *permission.Principal, names ...string) error
}

// RequirePermissions gates a route on CRUD grants. The session check runs
// first: a request with no authenticated user is 401, never 403.
func RequirePermissions(evaluator Evaluator, reqs permission.Requirements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				writeDenied(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			principal := principalFor(user)
			if err := evaluator.Authorize(r.Context(), principal, reqs); err != nil {
				if errors.Is(err, permission.ErrForbidden) {
					slog.Warn("access denied",
						"user_key", user.UserKey,
						"path", r.URL.Path,
						"error", err)
					writeDenied(w, http.StatusForbidden, "insufficient permissions")
					return
				}
				slog.Error("authorization check failed", "user_key", user.UserKey, "error", err)
				writeDenied(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireCustom gates a route on named custom permissions.
func RequireCustom(evaluator Evaluator, names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				writeDenied(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			principal := principalFor(user)
			if err := evaluator.AuthorizeCustom(r.Context(), principal, names...); err != nil {
				if errors.Is(err, permission.ErrForbidden) {
					slog.Warn("custom permission denied",
						"user_key", user.UserKey,
						"path", r.URL.Path,
						"required", names)
					writeDenied(w, http.StatusForbidden, "insufficient permissions")
					return
				}
				slog.Error("authorization check failed", "user_key", user.UserKey, "error", err)
				writeDenied(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func principalFor(user *auth.SessionUser) *permission.Principal {
	return &permission.Principal{
		UserID:       user.ID,
		UserKey:      user.UserKey,
		Email:        user.Email,
		IsSuperadmin: user.IsSuperadmin,
	}
}

func writeDenied(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    status,
		"message": message,
	})
}

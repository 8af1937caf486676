package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rmaulana/iam-service/internal/auth"
	"github.com/rmaulana/iam-service/internal/transport"
	"github.com/rmaulana/iam-service/pkg/logger"
)

type ServiceAPI interface {
	GetUser(ctx context.Context, userKey string) (*User, error)
	UserProfiles(ctx context.Context, userKey string) ([]ProfileSummary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	sessionUser, ok := auth.UserFromContext(r.Context())
	if !ok || sessionUser == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.Service.GetUser(r.Context(), sessionUser.UserKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		h.Logger.Error("load current user failed", "user_key", sessionUser.UserKey, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	profiles, err := h.Service.UserProfiles(r.Context(), sessionUser.UserKey)
	if err != nil {
		h.Logger.Error("load current user profiles failed", "user_key", sessionUser.UserKey, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user":     u,
		"profiles": profiles,
	})
}

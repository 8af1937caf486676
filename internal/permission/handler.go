package permission

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rmaulana/iam-service/internal/transport"
	"github.com/rmaulana/iam-service/pkg/logger"
)

type ServiceAPI interface {
	Authorize(ctx context.Context, principal *Principal, reqs Requirements) error
	AuthorizeCustom(ctx context.Context, principal *Principal, names ...string) error
	PermissionsByModule(ctx context.Context, profileKey string) (*ProfilePermissions, error)
	ApplyProfilePermissions(ctx context.Context, profileKey string, entityPerms []EntityPermissionUpdate, customPerms []CustomPermissionUpdate) error
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

// GetProfilePermissions handles GET /profiles/{profileKey}/permissions
func (h *Handler) GetProfilePermissions(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	view, err := h.Service.PermissionsByModule(r.Context(), profileKey)
	if err != nil {
		h.writePermissionError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// UpdateProfilePermissions handles PUT /profiles/{profileKey}/permissions
func (h *Handler) UpdateProfilePermissions(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	var dto UpdateProfilePermissionsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.Service.ApplyProfilePermissions(r.Context(), profileKey, dto.EntityPermissions, dto.CustomPermissions)
	if err != nil {
		h.Logger.Error("bulk permission update failed", "profile_key", profileKey, "error", err)
		h.writePermissionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writePermissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrPermissionNotFound),
		errors.Is(err, ErrCustomNotFound), errors.Is(err, ErrModuleNotFound):
		h.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyModuleList), errors.Is(err, ErrModuleAlreadyAttached):
		h.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		h.WriteError(w, http.StatusForbidden, "insufficient permissions")
	default:
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

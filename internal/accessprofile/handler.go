package accessprofile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/rmaulana/iam-service/internal/permission"
	"github.com/rmaulana/iam-service/internal/transport"
	"github.com/rmaulana/iam-service/pkg/logger"
)

type ServiceAPI interface {
	ListProfiles(ctx context.Context, page, perPage int) (*ProfileListResponse, error)
	GetProfile(ctx context.Context, profileKey string) (*AccessProfile, error)
	CreateProfile(ctx context.Context, dto CreateProfileDTO) (*AccessProfile, error)
	UpdateProfile(ctx context.Context, profileKey string, dto UpdateProfileDTO) (*AccessProfile, error)
	RemoveProfile(ctx context.Context, profileKey string) error

	ProfileModules(ctx context.Context, profileKey string) ([]ModuleSummary, error)
	AttachModule(ctx context.Context, profileKey, moduleKey string) error
	DetachModule(ctx context.Context, profileKey, moduleKey string) (int64, error)
	ReplaceModules(ctx context.Context, profileKey string, moduleKeys []string) error
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

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	resp, err := h.Service.ListProfiles(r.Context(), page, perPage)
	if err != nil {
		h.Logger.Error("list profiles failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	profile, err := h.Service.GetProfile(r.Context(), profileKey)
	if err != nil {
		h.writeProfileError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var dto CreateProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.Service.CreateProfile(r.Context(), dto)
	if err != nil {
		h.writeProfileError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, profile)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	var dto UpdateProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.Service.UpdateProfile(r.Context(), profileKey, dto)
	if err != nil {
		h.writeProfileError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	if err := h.Service.RemoveProfile(r.Context(), profileKey); err != nil {
		h.writeProfileError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProfileModules(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	modules, err := h.Service.ProfileModules(r.Context(), profileKey)
	if err != nil {
		h.writeProfileError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"modules": modules})
}

func (h *Handler) AddProfileModule(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	var dto AddModuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.AttachModule(r.Context(), profileKey, dto.ModuleKey); err != nil {
		h.writeProfileError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) ReplaceProfileModules(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")

	var dto permission.SetProfileModulesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.ReplaceModules(r.Context(), profileKey, dto.Modules); err != nil {
		h.writeProfileError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveProfileModule(w http.ResponseWriter, r *http.Request) {
	profileKey := chi.URLParam(r, "profileKey")
	moduleKey := chi.URLParam(r, "moduleKey")

	affected, err := h.Service.DetachModule(r.Context(), profileKey, moduleKey)
	if err != nil {
		h.writeProfileError(w, err)
		return
	}
	if affected == 0 {
		h.WriteError(w, http.StatusNotFound, "module is not attached to profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, permission.ErrProfileNotFound):
		h.WriteError(w, http.StatusNotFound, "access profile not found")
	case errors.Is(err, permission.ErrModuleNotFound):
		h.WriteError(w, http.StatusNotFound, "module not found")
	case errors.Is(err, permission.ErrModuleAlreadyAttached):
		h.WriteError(w, http.StatusConflict, "module already attached to profile")
	case errors.Is(err, permission.ErrEmptyModuleList):
		h.WriteError(w, http.StatusBadRequest, "module list must not be empty")
	default:
		if _, ok := err.(ValidationError); ok {
			h.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Logger.Error("access profile request failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

package modcontrol

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	mdm "github.com/rmaulana/iam-service/internal/core/datamodel/modcontrol"
	"github.com/rmaulana/iam-service/internal/transport"
	"github.com/rmaulana/iam-service/pkg/logger"
)

type ServiceAPI interface {
	ListModules(ctx context.Context) ([]mdm.Module, error)
	ModuleByKey(ctx context.Context, moduleKey string) (*mdm.Module, error)
	ModuleEntities(ctx context.Context, moduleID int64) ([]mdm.ModuleEntity, error)
}

// ModuleResponse is the read-only module view including its entities.
type ModuleResponse struct {
	ModuleKey string           `json:"module_key"`
	Title     string           `json:"title"`
	Entities  []EntityResponse `json:"entities,omitempty"`
}

type EntityResponse struct {
	Name  string `json:"name"`
	Label string `json:"label"`
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

func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.Service.ListModules(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ModuleResponse, 0, len(modules))
	for _, module := range modules {
		resp = append(resp, ModuleResponse{ModuleKey: module.ModuleKey, Title: module.Title})
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"modules": resp})
}

func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	moduleKey := chi.URLParam(r, "moduleKey")

	module, err := h.Service.ModuleByKey(r.Context(), moduleKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, "module not found")
			return
		}
		h.Logger.Error("load module failed", "module_key", moduleKey, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	entities, err := h.Service.ModuleEntities(r.Context(), module.ID)
	if err != nil {
		h.Logger.Error("load module entities failed", "module_key", moduleKey, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ModuleResponse{ModuleKey: module.ModuleKey, Title: module.Title}
	for _, entity := range entities {
		resp.Entities = append(resp.Entities, EntityResponse{Name: entity.Name, Label: entity.Label})
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

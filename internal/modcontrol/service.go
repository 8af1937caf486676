package modcontrol

import (
	"context"
	"log/slog"

	mdm "github.com/rmaulana/iam-service/internal/core/datamodel/modcontrol"
	"github.com/rmaulana/iam-service/internal/permission"
)

// ErrNotFound aliases the permission-side sentinel so both layers agree on
// what a missing module looks like.
var ErrNotFound = permission.ErrModuleNotFound

type RepositoryAPI interface {
	List(ctx context.Context) ([]mdm.Module, error)
	GetByID(ctx context.Context, id int64) (*mdm.Module, error)
	GetByKey(ctx context.Context, moduleKey string) (*mdm.Module, error)
	GetByIDs(ctx context.Context, ids []int64) ([]mdm.Module, error)
	EntitiesForModule(ctx context.Context, moduleID int64) ([]mdm.ModuleEntity, error)
}

// Service is the read-only module catalog. Modules and their entities are
// provisioned by migration and seed data, never over the API.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListModules(ctx context.Context) ([]mdm.Module, error) {
	modules, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list modules", "error", err)
		return nil, err
	}
	return modules, nil
}

func (s *Service) ModuleByID(ctx context.Context, id int64) (*mdm.Module, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ModuleByKey(ctx context.Context, moduleKey string) (*mdm.Module, error) {
	return s.repo.GetByKey(ctx, moduleKey)
}

func (s *Service) ModulesByIDs(ctx context.Context, ids []int64) ([]mdm.Module, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) ModuleEntities(ctx context.Context, moduleID int64) ([]mdm.ModuleEntity, error) {
	return s.repo.EntitiesForModule(ctx, moduleID)
}

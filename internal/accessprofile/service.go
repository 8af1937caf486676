package accessprofile

import (
	"context"
	"fmt"
	"log/slog"

	iamDatamodel "github.com/rmaulana/iam-service/internal/core/datamodel/iam"
	mdm "github.com/rmaulana/iam-service/internal/core/datamodel/modcontrol"
	"github.com/rmaulana/iam-service/internal/core/events"
)

type RepositoryAPI interface {
	List(ctx context.Context, offset, limit int) ([]*iamDatamodel.AccessProfile, int64, error)
	GetByKey(ctx context.Context, profileKey string) (*iamDatamodel.AccessProfile, error)
	Create(ctx context.Context, profile *iamDatamodel.AccessProfile) error
	Update(ctx context.Context, profile *iamDatamodel.AccessProfile) error

	// DeleteCascade removes the profile together with its user assignments,
	// module attachments, Permission rows and custom permission relations in
	// one transaction.
	DeleteCascade(ctx context.Context, profileID int64) error

	AttachedModules(ctx context.Context, profileID int64) ([]mdm.Module, error)
}

// PermissionMutator is the slice of the permission engine the profile
// service drives for attachment changes.
type PermissionMutator interface {
	AddModule(ctx context.Context, profileID, moduleID int64) error
	RemoveModule(ctx context.Context, profileID, moduleID int64) (int64, error)
	SetProfileModules(ctx context.Context, profileKey string, moduleKeys []string) error
}

// ModuleCatalog resolves module keys from the module-control domain.
type ModuleCatalog interface {
	ModuleByKey(ctx context.Context, moduleKey string) (*mdm.Module, error)
}

// ModuleSummary is the compact module listing attached to a profile.
type ModuleSummary struct {
	ModuleKey string `json:"module_key"`
	Title     string `json:"title"`
}

// ProfileListResponse is one page of profiles.
type ProfileListResponse struct {
	Profiles []AccessProfile `json:"profiles"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
}

const defaultPerPage = 20

type Service struct {
	repo    RepositoryAPI
	perms   PermissionMutator
	modules ModuleCatalog
	bus     *events.EventBus
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, perms PermissionMutator, modules ModuleCatalog, bus *events.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		perms:   perms,
		modules: modules,
		bus:     bus,
		logger:  logger,
	}
}

func (s *Service) ListProfiles(ctx context.Context, page, perPage int) (*ProfileListResponse, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}

	rows, total, err := s.repo.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		s.logger.Error("failed to list access profiles", "error", err)
		return nil, err
	}

	resp := &ProfileListResponse{
		Profiles: make([]AccessProfile, 0, len(rows)),
		Total:    total,
		Page:     page,
		PerPage:  perPage,
	}
	for _, row := range rows {
		resp.Profiles = append(resp.Profiles, *FromDataModel(row))
	}
	return resp, nil
}

func (s *Service) GetProfile(ctx context.Context, profileKey string) (*AccessProfile, error) {
	row, err := s.repo.GetByKey(ctx, profileKey)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) CreateProfile(ctx context.Context, dto CreateProfileDTO) (*AccessProfile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	row := &iamDatamodel.AccessProfile{
		ProfileKey:  NewProfileKey(),
		Title:       dto.Title,
		Description: dto.Description,
		Tag:         dto.Tag,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create access profile", "title", dto.Title, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeProfileCreated, map[string]interface{}{
		"profile_key": row.ProfileKey,
		"title":       row.Title,
	}))
	return FromDataModel(row), nil
}

func (s *Service) UpdateProfile(ctx context.Context, profileKey string, dto UpdateProfileDTO) (*AccessProfile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	row, err := s.repo.GetByKey(ctx, profileKey)
	if err != nil {
		return nil, err
	}

	row.Title = dto.Title
	row.Description = dto.Description
	row.Tag = dto.Tag
	if err := s.repo.Update(ctx, row); err != nil {
		s.logger.Error("failed to update access profile", "profile_key", profileKey, "error", err)
		return nil, fmt.Errorf("update profile %s: %w", profileKey, err)
	}
	return FromDataModel(row), nil
}

// RemoveProfile deletes a profile and everything hanging off it. Users that
// held the profile simply lose those grants on their next request.
func (s *Service) RemoveProfile(ctx context.Context, profileKey string) error {
	row, err := s.repo.GetByKey(ctx, profileKey)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteCascade(ctx, row.ID); err != nil {
		s.logger.Error("failed to remove access profile", "profile_key", profileKey, "error", err)
		return fmt.Errorf("remove profile %s: %w", profileKey, err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeProfileRemoved, map[string]interface{}{
		"profile_key": profileKey,
	}))
	return nil
}

func (s *Service) ProfileModules(ctx context.Context, profileKey string) ([]ModuleSummary, error) {
	row, err := s.repo.GetByKey(ctx, profileKey)
	if err != nil {
		return nil, err
	}

	modules, err := s.repo.AttachedModules(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("load modules for profile %s: %w", profileKey, err)
	}

	summaries := make([]ModuleSummary, 0, len(modules))
	for _, module := range modules {
		summaries = append(summaries, ModuleSummary{ModuleKey: module.ModuleKey, Title: module.Title})
	}
	return summaries, nil
}

// AttachModule adds a module to a profile, seeding zero-grant Permission
// rows for each of the module's entities.
func (s *Service) AttachModule(ctx context.Context, profileKey, moduleKey string) error {
	profile, err := s.repo.GetByKey(ctx, profileKey)
	if err != nil {
		return err
	}
	module, err := s.modules.ModuleByKey(ctx, moduleKey)
	if err != nil {
		return err
	}
	return s.perms.AddModule(ctx, profile.ID, module.ID)
}

// DetachModule removes a module from a profile, cascading its Permission
// rows. The count lets the handler answer 404 when nothing was attached.
func (s *Service) DetachModule(ctx context.Context, profileKey, moduleKey string) (int64, error) {
	profile, err := s.repo.GetByKey(ctx, profileKey)
	if err != nil {
		return 0, err
	}
	module, err := s.modules.ModuleByKey(ctx, moduleKey)
	if err != nil {
		return 0, err
	}
	return s.perms.RemoveModule(ctx, profile.ID, module.ID)
}

// ReplaceModules reconciles the profile's attachments to exactly the given
// module keys.
func (s *Service) ReplaceModules(ctx context.Context, profileKey string, moduleKeys []string) error {
	return s.perms.SetProfileModules(ctx, profileKey, moduleKeys)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("publish audit event failed", "event_type", event.EventType(), "error", err)
	}
}

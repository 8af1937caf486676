package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rmaulana/iam-service/internal/core/datamodel/iam"
	mdm "github.com/rmaulana/iam-service/internal/core/datamodel/modcontrol"
	"github.com/rmaulana/iam-service/internal/core/events"
)

// StoredPermission is a Permission row as the mutator and the effective view
// see it: external key, the entity it grants on, and the four bits.
type StoredPermission struct {
	PermissionKey  string
	ModuleEntityID int64
	Bits           CRUDSet
}

// Repository is the persistence collaborator for the grant store and the
// profile/module graph. All multi-row mutations run through InTransaction;
// an error from the callback rolls back every row change.
type Repository interface {
	InTransaction(ctx context.Context, fn func(Repository) error) error

	ProfileByKey(ctx context.Context, profileKey string) (*iam.AccessProfile, error)
	UserProfileIDs(ctx context.Context, userID int64) ([]int64, error)

	// EntityGrantRows returns stored grants for the given profiles on the
	// named entities, joined through the profile-module attachment so rows
	// orphaned by a detached module are never visible.
	EntityGrantRows(ctx context.Context, profileIDs []int64, entities []string) ([]EntityGrantRow, error)
	RelatedCustomNames(ctx context.Context, profileIDs []int64, names []string) ([]string, error)

	AttachedModuleIDs(ctx context.Context, profileID int64) ([]int64, error)
	AttachmentExists(ctx context.Context, profileID, moduleID int64) (bool, error)
	PermissionRowsForProfile(ctx context.Context, profileID int64) ([]StoredPermission, error)
	CustomPermissionCatalog(ctx context.Context) ([]iam.CustomPermission, error)
	CustomPermissionByKey(ctx context.Context, permissionKey string) (*iam.CustomPermission, error)
	RelatedCustomPermissionIDs(ctx context.Context, profileID int64) ([]int64, error)

	UpdatePermissionBits(ctx context.Context, permissionKey string, bits CRUDSet) (int64, error)
	RelateCustomPermission(ctx context.Context, profileID, customPermissionID int64) error
	RemoveCustomPermissionRelation(ctx context.Context, profileID, customPermissionID int64) error
	AttachModule(ctx context.Context, profileID, moduleID int64, entityIDs []int64) error
	DetachModule(ctx context.Context, profileID, moduleID int64) (int64, error)
}

// ModuleControl is the read-only module-control collaborator.
type ModuleControl interface {
	ModuleByID(ctx context.Context, id int64) (*mdm.Module, error)
	ModuleByKey(ctx context.Context, moduleKey string) (*mdm.Module, error)
	ModulesByIDs(ctx context.Context, ids []int64) ([]mdm.Module, error)
	ModuleEntities(ctx context.Context, moduleID int64) ([]mdm.ModuleEntity, error)
}

// Service is the permission evaluation and mutation engine.
type Service struct {
	repo    Repository
	modules ModuleControl
	bus     *events.EventBus
	logger  *slog.Logger
}

func NewService(repo Repository, modules ModuleControl, bus *events.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		modules: modules,
		bus:     bus,
		logger:  logger,
	}
}

// ---------------------------------------------------------------- evaluator

// Authorize decides whether the principal holds every required bit on every
// required entity. The superadmin short-circuit runs before any grant
// lookup. Grants are unioned across all of the principal's profiles; a
// single unmet requirement denies the whole request with ErrForbidden.
func (s *Service) Authorize(ctx context.Context, principal *Principal, reqs Requirements) error {
	if principal == nil {
		return fmt.Errorf("%w: no principal", ErrForbidden)
	}
	if principal.IsSuperadmin {
		return nil
	}
	if len(reqs) == 0 {
		return nil
	}

	profileIDs, err := s.repo.UserProfileIDs(ctx, principal.UserID)
	if err != nil {
		return fmt.Errorf("resolve profiles for user %d: %w", principal.UserID, err)
	}
	if len(profileIDs) == 0 {
		return fmt.Errorf("%w: user holds no access profiles", ErrForbidden)
	}

	entities := make([]string, 0, len(reqs))
	for entity := range reqs {
		entities = append(entities, entity)
	}

	rows, err := s.repo.EntityGrantRows(ctx, profileIDs, entities)
	if err != nil {
		return fmt.Errorf("load grants: %w", err)
	}

	granted := make(map[string]CRUDSet, len(reqs))
	for _, row := range rows {
		granted[row.Entity] = granted[row.Entity].Union(row.Bits)
	}

	for entity, required := range reqs {
		if !granted[entity].Contains(required) {
			s.logger.Warn("authorization denied",
				"user_id", principal.UserID,
				"entity", entity,
				"required", required.String(),
				"granted", granted[entity].String())
			return fmt.Errorf("%w: entity %s requires %s", ErrForbidden, entity, required)
		}
	}
	return nil
}

// AuthorizeCustom checks binary custom-permission grants. Every named
// permission must be related to at least one of the principal's profiles.
func (s *Service) AuthorizeCustom(ctx context.Context, principal *Principal, names ...string) error {
	if principal == nil {
		return fmt.Errorf("%w: no principal", ErrForbidden)
	}
	if principal.IsSuperadmin || len(names) == 0 {
		return nil
	}

	profileIDs, err := s.repo.UserProfileIDs(ctx, principal.UserID)
	if err != nil {
		return fmt.Errorf("resolve profiles for user %d: %w", principal.UserID, err)
	}
	if len(profileIDs) == 0 {
		return fmt.Errorf("%w: user holds no access profiles", ErrForbidden)
	}

	related, err := s.repo.RelatedCustomNames(ctx, profileIDs, names)
	if err != nil {
		return fmt.Errorf("load custom grants: %w", err)
	}
	held := make(map[string]struct{}, len(related))
	for _, name := range related {
		held[name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := held[name]; !ok {
			return fmt.Errorf("%w: custom permission %s", ErrForbidden, name)
		}
	}
	return nil
}

// PermissionsByModule assembles the effective grant view for a profile.
// Entities with no stored Permission row appear with all four bits false;
// the custom permission catalog is returned in full with relation flags.
func (s *Service) PermissionsByModule(ctx context.Context, profileKey string) (*ProfilePermissions, error) {
	profile, err := s.repo.ProfileByKey(ctx, profileKey)
	if err != nil {
		return nil, err
	}

	moduleIDs, err := s.repo.AttachedModuleIDs(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load attached modules: %w", err)
	}

	stored, err := s.repo.PermissionRowsForProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load permission rows: %w", err)
	}
	storedByEntity := make(map[int64]StoredPermission, len(stored))
	for _, row := range stored {
		storedByEntity[row.ModuleEntityID] = row
	}

	view := &ProfilePermissions{ProfileKey: profile.ProfileKey}

	if len(moduleIDs) > 0 {
		modules, err := s.modules.ModulesByIDs(ctx, moduleIDs)
		if err != nil {
			return nil, fmt.Errorf("load modules: %w", err)
		}
		for _, module := range modules {
			entities, err := s.modules.ModuleEntities(ctx, module.ID)
			if err != nil {
				return nil, fmt.Errorf("load entities for module %s: %w", module.ModuleKey, err)
			}
			mp := ModulePermissions{ModuleKey: module.ModuleKey, Title: module.Title}
			for _, entity := range entities {
				ep := EntityPermission{Entity: entity.Name, Label: entity.Label}
				if row, ok := storedByEntity[entity.ID]; ok {
					ep.PermissionKey = row.PermissionKey
					ep.Bits = row.Bits
				}
				mp.Entities = append(mp.Entities, ep)
			}
			view.Modules = append(view.Modules, mp)
		}
	}

	catalog, err := s.repo.CustomPermissionCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load custom permission catalog: %w", err)
	}
	relatedIDs, err := s.repo.RelatedCustomPermissionIDs(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load custom permission relations: %w", err)
	}
	related := make(map[int64]struct{}, len(relatedIDs))
	for _, id := range relatedIDs {
		related[id] = struct{}{}
	}
	for _, entry := range catalog {
		_, granted := related[entry.ID]
		view.CustomPermissions = append(view.CustomPermissions, CustomPermissionState{
			PermissionKey: entry.PermissionKey,
			Name:          entry.Name,
			Description:   entry.Description,
			Granted:       granted,
		})
	}

	return view, nil
}

// ----------------------------------------------------------------- mutator

// UpdatePermission overwrites the four CRUD bits on an existing Permission
// row. It never creates rows: a missing key is ErrPermissionNotFound.
func (s *Service) UpdatePermission(ctx context.Context, permissionKey string, bits CRUDSet) error {
	affected, err := s.repo.UpdatePermissionBits(ctx, permissionKey, bits)
	if err != nil {
		return fmt.Errorf("update permission %s: %w", permissionKey, err)
	}
	if affected == 0 {
		return ErrPermissionNotFound
	}
	s.publish(ctx, events.NewPermissionUpdatedEvent(permissionKey, bits.String()))
	return nil
}

// RelateCustomPermission grants a custom permission to a profile.
// Re-relating an already related pair is a no-op success.
func (s *Service) RelateCustomPermission(ctx context.Context, profileKey, customKey string) error {
	profile, err := s.repo.ProfileByKey(ctx, profileKey)
	if err != nil {
		return err
	}
	custom, err := s.repo.CustomPermissionByKey(ctx, customKey)
	if err != nil {
		return err
	}
	if err := s.repo.RelateCustomPermission(ctx, profile.ID, custom.ID); err != nil {
		return fmt.Errorf("relate custom permission %s to %s: %w", customKey, profileKey, err)
	}
	s.publish(ctx, events.NewAuditEvent(events.EventTypeCustomPermissionChange, map[string]interface{}{
		"profile_key":    profileKey,
		"permission_key": customKey,
		"granted":        true,
	}))
	return nil
}

// RemoveCustomPermissionRelation revokes a custom permission from a
// profile. Removing an absent relation is a no-op success.
func (s *Service) RemoveCustomPermissionRelation(ctx context.Context, profileKey, customKey string) error {
	profile, err := s.repo.ProfileByKey(ctx, profileKey)
	if err != nil {
		return err
	}
	custom, err := s.repo.CustomPermissionByKey(ctx, customKey)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveCustomPermissionRelation(ctx, profile.ID, custom.ID); err != nil {
		return fmt.Errorf("remove custom permission %s from %s: %w", customKey, profileKey, err)
	}
	s.publish(ctx, events.NewAuditEvent(events.EventTypeCustomPermissionChange, map[string]interface{}{
		"profile_key":    profileKey,
		"permission_key": customKey,
		"granted":        false,
	}))
	return nil
}

// EntityPermissionUpdate is one row of a bulk grant update.
type EntityPermissionUpdate struct {
	PermissionKey string  `json:"permission_key"`
	Bits          CRUDSet `json:"grants"`
}

// CustomPermissionUpdate sets the relation state for one custom permission.
type CustomPermissionUpdate struct {
	PermissionKey string `json:"permission_key"`
	Granted       bool   `json:"granted"`
}

// ApplyProfilePermissions applies a bulk permission update for one profile
// in a single transaction: every entity row overwrite and custom-permission
// relation change commits together or not at all.
func (s *Service) ApplyProfilePermissions(ctx context.Context, profileKey string, entityPerms []EntityPermissionUpdate, customPerms []CustomPermissionUpdate) error {
	profile, err := s.repo.ProfileByKey(ctx, profileKey)
	if err != nil {
		return err
	}

	err = s.repo.InTransaction(ctx, func(tx Repository) error {
		for _, update := range entityPerms {
			affected, err := tx.UpdatePermissionBits(ctx, update.PermissionKey, update.Bits)
			if err != nil {
				return fmt.Errorf("update permission %s: %w", update.PermissionKey, err)
			}
			if affected == 0 {
				return fmt.Errorf("%w: %s", ErrPermissionNotFound, update.PermissionKey)
			}
		}
		for _, update := range customPerms {
			custom, err := tx.CustomPermissionByKey(ctx, update.PermissionKey)
			if err != nil {
				return err
			}
			if update.Granted {
				if err := tx.RelateCustomPermission(ctx, profile.ID, custom.ID); err != nil {
					return fmt.Errorf("relate custom permission %s: %w", update.PermissionKey, err)
				}
			} else {
				if err := tx.RemoveCustomPermissionRelation(ctx, profile.ID, custom.ID); err != nil {
					return fmt.Errorf("remove custom permission %s: %w", update.PermissionKey, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypePermissionUpdated, map[string]interface{}{
		"profile_key":        profileKey,
		"entity_updates":     len(entityPerms),
		"custom_updates":     len(customPerms),
		"applied_atomically": true,
	}))
	return nil
}

// AddModule attaches a module to a profile and creates one all-false
// Permission row per module entity. Attaching never auto-grants anything.
func (s *Service) AddModule(ctx context.Context, profileID, moduleID int64) error {
	module, err := s.modules.ModuleByID(ctx, moduleID)
	if err != nil {
		return err
	}

	attached, err := s.repo.AttachmentExists(ctx, profileID, moduleID)
	if err != nil {
		return fmt.Errorf("check attachment: %w", err)
	}
	if attached {
		return ErrModuleAlreadyAttached
	}

	entities, err := s.modules.ModuleEntities(ctx, moduleID)
	if err != nil {
		return fmt.Errorf("load entities for module %s: %w", module.ModuleKey, err)
	}
	entityIDs := make([]int64, len(entities))
	for i, entity := range entities {
		entityIDs[i] = entity.ID
	}

	err = s.repo.InTransaction(ctx, func(tx Repository) error {
		return tx.AttachModule(ctx, profileID, moduleID, entityIDs)
	})
	if err != nil {
		return fmt.Errorf("attach module %s: %w", module.ModuleKey, err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeModuleAttached, map[string]interface{}{
		"profile_id": profileID,
		"module_key": module.ModuleKey,
		"entities":   len(entityIDs),
	}))
	return nil
}

// RemoveModule detaches a module from a profile, cascading deletion of its
// Permission rows. The returned count lets callers distinguish "nothing to
// remove" from success.
func (s *Service) RemoveModule(ctx context.Context, profileID, moduleID int64) (int64, error) {
	var affected int64
	err := s.repo.InTransaction(ctx, func(tx Repository) error {
		var err error
		affected, err = tx.DetachModule(ctx, profileID, moduleID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("detach module %d: %w", moduleID, err)
	}
	if affected > 0 {
		s.publish(ctx, events.NewAuditEvent(events.EventTypeModuleDetached, map[string]interface{}{
			"profile_id": profileID,
			"module_id":  moduleID,
		}))
	}
	return affected, nil
}

// SetProfileModules reconciles a profile's attachment set to exactly the
// given module keys: newly present modules are attached with zero-grant
// Permission rows, newly absent ones are detached with their rows cascaded,
// all inside one transaction.
func (s *Service) SetProfileModules(ctx context.Context, profileKey string, moduleKeys []string) error {
	if len(moduleKeys) == 0 {
		return ErrEmptyModuleList
	}

	profile, err := s.repo.ProfileByKey(ctx, profileKey)
	if err != nil {
		return err
	}

	wanted := make(map[int64]struct{}, len(moduleKeys))
	entityIDsByModule := make(map[int64][]int64)
	for _, key := range moduleKeys {
		module, err := s.modules.ModuleByKey(ctx, key)
		if err != nil {
			return err
		}
		if _, ok := wanted[module.ID]; ok {
			continue
		}
		wanted[module.ID] = struct{}{}

		entities, err := s.modules.ModuleEntities(ctx, module.ID)
		if err != nil {
			return fmt.Errorf("load entities for module %s: %w", key, err)
		}
		ids := make([]int64, len(entities))
		for i, entity := range entities {
			ids[i] = entity.ID
		}
		entityIDsByModule[module.ID] = ids
	}

	current, err := s.repo.AttachedModuleIDs(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("load attached modules: %w", err)
	}
	currentSet := make(map[int64]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	err = s.repo.InTransaction(ctx, func(tx Repository) error {
		for _, id := range current {
			if _, keep := wanted[id]; !keep {
				if _, err := tx.DetachModule(ctx, profile.ID, id); err != nil {
					return fmt.Errorf("detach module %d: %w", id, err)
				}
			}
		}
		for id := range wanted {
			if _, have := currentSet[id]; !have {
				if err := tx.AttachModule(ctx, profile.ID, id, entityIDsByModule[id]); err != nil {
					return fmt.Errorf("attach module %d: %w", id, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeProfileModulesReplaced, map[string]interface{}{
		"profile_key": profileKey,
		"modules":     moduleKeys,
	}))
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("publish audit event failed", "event_type", event.EventType(), "error", err)
	}
}

// ErrModuleAlreadyAttached is returned by AddModule when the attachment
// already exists; SetProfileModules treats existing attachments as kept.
var ErrModuleAlreadyAttached = errors.New("permission: module already attached to profile")

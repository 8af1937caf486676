package postgres

import (
	"context"

	"github.com/rmaulana/iam-service/internal/core/datamodel/iam"
	"github.com/rmaulana/iam-service/internal/permission"
	"gorm.io/gorm"
)

// PermissionRepository implements permission.Repository using GORM.
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.Repository {
	return &PermissionRepository{db: db}
}

// InTransaction runs fn against a repository bound to a transaction; any
// error rolls back every row change made inside.
func (r *PermissionRepository) InTransaction(ctx context.Context, fn func(permission.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PermissionRepository{db: tx})
	})
}

func (r *PermissionRepository) ProfileByKey(ctx context.Context, profileKey string) (*iam.AccessProfile, error) {
	var profile iam.AccessProfile
	err := r.db.WithContext(ctx).Where("profile_key = ?", profileKey).First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, permission.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *PermissionRepository) UserProfileIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&iam.UserAccessProfile{}).
		Where("user_id = ?", userID).
		Pluck("access_profile_id", &ids).Error
	return ids, err
}

// EntityGrantRows joins permissions through the profile-module attachment.
// The extra module_id equality guards against rows pointing at an entity of
// a module the attachment no longer covers.
func (r *PermissionRepository) EntityGrantRows(ctx context.Context, profileIDs []int64, entities []string) ([]permission.EntityGrantRow, error) {
	if len(profileIDs) == 0 || len(entities) == 0 {
		return nil, nil
	}

	query := `
SELECT me.name AS entity,
       p.can_create, p.can_read, p.can_update, p.can_delete
FROM permissions p
JOIN access_profile_modules apm ON apm.id = p.access_profile_module_id
JOIN module_entities me ON me.id = p.module_entity_id AND me.module_id = apm.module_id
WHERE apm.access_profile_id IN ? AND me.name IN ?`

	rows, err := r.db.WithContext(ctx).Raw(query, profileIDs, entities).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []permission.EntityGrantRow
	for rows.Next() {
		var row permission.EntityGrantRow
		if err := rows.Scan(&row.Entity, &row.Bits.Create, &row.Bits.Read, &row.Bits.Update, &row.Bits.Delete); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *PermissionRepository) RelatedCustomNames(ctx context.Context, profileIDs []int64, names []string) ([]string, error) {
	if len(profileIDs) == 0 || len(names) == 0 {
		return nil, nil
	}

	var related []string
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfileCustomPermission{}).
		Joins("JOIN custom_permissions cp ON cp.id = access_profile_custom_permissions.custom_permission_id").
		Where("access_profile_custom_permissions.access_profile_id IN ? AND cp.name IN ?", profileIDs, names).
		Distinct().
		Pluck("cp.name", &related).Error
	return related, err
}

func (r *PermissionRepository) AttachedModuleIDs(ctx context.Context, profileID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfileModule{}).
		Where("access_profile_id = ?", profileID).
		Pluck("module_id", &ids).Error
	return ids, err
}

func (r *PermissionRepository) AttachmentExists(ctx context.Context, profileID, moduleID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfileModule{}).
		Where("access_profile_id = ? AND module_id = ?", profileID, moduleID).
		Count(&count).Error
	return count > 0, err
}

func (r *PermissionRepository) PermissionRowsForProfile(ctx context.Context, profileID int64) ([]permission.StoredPermission, error) {
	query := `
SELECT p.permission_key, p.module_entity_id,
       p.can_create, p.can_read, p.can_update, p.can_delete
FROM permissions p
JOIN access_profile_modules apm ON apm.id = p.access_profile_module_id
WHERE apm.access_profile_id = ?`

	rows, err := r.db.WithContext(ctx).Raw(query, profileID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []permission.StoredPermission
	for rows.Next() {
		var row permission.StoredPermission
		if err := rows.Scan(&row.PermissionKey, &row.ModuleEntityID, &row.Bits.Create, &row.Bits.Read, &row.Bits.Update, &row.Bits.Delete); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *PermissionRepository) CustomPermissionCatalog(ctx context.Context) ([]iam.CustomPermission, error) {
	var catalog []iam.CustomPermission
	err := r.db.WithContext(ctx).Order("name ASC").Find(&catalog).Error
	return catalog, err
}

func (r *PermissionRepository) CustomPermissionByKey(ctx context.Context, permissionKey string) (*iam.CustomPermission, error) {
	var custom iam.CustomPermission
	err := r.db.WithContext(ctx).Where("permission_key = ?", permissionKey).First(&custom).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, permission.ErrCustomNotFound
		}
		return nil, err
	}
	return &custom, nil
}

func (r *PermissionRepository) RelatedCustomPermissionIDs(ctx context.Context, profileID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfileCustomPermission{}).
		Where("access_profile_id = ?", profileID).
		Pluck("custom_permission_id", &ids).Error
	return ids, err
}

func (r *PermissionRepository) UpdatePermissionBits(ctx context.Context, permissionKey string, bits permission.CRUDSet) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&iam.Permission{}).
		Where("permission_key = ?", permissionKey).
		Updates(map[string]interface{}{
			"can_create": bits.Create,
			"can_read":   bits.Read,
			"can_update": bits.Update,
			"can_delete": bits.Delete,
		})
	return result.RowsAffected, result.Error
}

func (r *PermissionRepository) RelateCustomPermission(ctx context.Context, profileID, customPermissionID int64) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfileCustomPermission{}).
		Where("access_profile_id = ? AND custom_permission_id = ?", profileID, customPermissionID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&iam.AccessProfileCustomPermission{
		AccessProfileID:    profileID,
		CustomPermissionID: customPermissionID,
	}).Error
}

func (r *PermissionRepository) RemoveCustomPermissionRelation(ctx context.Context, profileID, customPermissionID int64) error {
	return r.db.WithContext(ctx).
		Where("access_profile_id = ? AND custom_permission_id = ?", profileID, customPermissionID).
		Delete(&iam.AccessProfileCustomPermission{}).Error
}

// AttachModule creates the attachment row plus one all-false Permission row
// per entity. Callers wrap it in InTransaction together with any sibling
// detachments.
func (r *PermissionRepository) AttachModule(ctx context.Context, profileID, moduleID int64, entityIDs []int64) error {
	attachment := iam.AccessProfileModule{
		AccessProfileID: profileID,
		ModuleID:        moduleID,
	}
	if err := r.db.WithContext(ctx).Create(&attachment).Error; err != nil {
		return err
	}

	for _, entityID := range entityIDs {
		row := iam.Permission{
			PermissionKey:         permission.NewPermissionKey(),
			AccessProfileModuleID: attachment.ID,
			ModuleEntityID:        entityID,
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// DetachModule deletes the attachment and cascades its Permission rows.
func (r *PermissionRepository) DetachModule(ctx context.Context, profileID, moduleID int64) (int64, error) {
	var attachments []iam.AccessProfileModule
	err := r.db.WithContext(ctx).
		Where("access_profile_id = ? AND module_id = ?", profileID, moduleID).
		Find(&attachments).Error
	if err != nil {
		return 0, err
	}
	if len(attachments) == 0 {
		return 0, nil
	}

	attachmentIDs := make([]int64, len(attachments))
	for i, attachment := range attachments {
		attachmentIDs[i] = attachment.ID
	}

	if err := r.db.WithContext(ctx).
		Where("access_profile_module_id IN ?", attachmentIDs).
		Delete(&iam.Permission{}).Error; err != nil {
		return 0, err
	}

	result := r.db.WithContext(ctx).
		Where("id IN ?", attachmentIDs).
		Delete(&iam.AccessProfileModule{})
	return result.RowsAffected, result.Error
}

package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rmaulana/iam-service/internal/accessprofile"
	"github.com/rmaulana/iam-service/internal/core/datamodel/iam"
	mdm "github.com/rmaulana/iam-service/internal/core/datamodel/modcontrol"
)

type AccessProfileRepository struct {
	db *gorm.DB
}

func NewAccessProfileRepository(db *gorm.DB) *AccessProfileRepository {
	return &AccessProfileRepository{db: db}
}

func (r *AccessProfileRepository) List(ctx context.Context, offset, limit int) ([]*iam.AccessProfile, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&iam.AccessProfile{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*iam.AccessProfile
	err := r.db.WithContext(ctx).
		Order("title ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *AccessProfileRepository) GetByKey(ctx context.Context, profileKey string) (*iam.AccessProfile, error) {
	var row iam.AccessProfile
	err := r.db.WithContext(ctx).Where("profile_key = ?", profileKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accessprofile.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *AccessProfileRepository) Create(ctx context.Context, profile *iam.AccessProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *AccessProfileRepository) Update(ctx context.Context, profile *iam.AccessProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// DeleteCascade removes the profile and every dependent row. Permission rows
// hang off the attachments, so they go first.
func (r *AccessProfileRepository) DeleteCascade(ctx context.Context, profileID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attachmentIDs []int64
		err := tx.Model(&iam.AccessProfileModule{}).
			Where("access_profile_id = ?", profileID).
			Pluck("id", &attachmentIDs).Error
		if err != nil {
			return err
		}

		if len(attachmentIDs) > 0 {
			if err := tx.Where("access_profile_module_id IN ?", attachmentIDs).Delete(&iam.Permission{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("access_profile_id = ?", profileID).Delete(&iam.AccessProfileModule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("access_profile_id = ?", profileID).Delete(&iam.AccessProfileCustomPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("access_profile_id = ?", profileID).Delete(&iam.UserAccessProfile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&iam.AccessProfile{}, profileID).Error
	})
}

func (r *AccessProfileRepository) AttachedModules(ctx context.Context, profileID int64) ([]mdm.Module, error) {
	var modules []mdm.Module
	err := r.db.WithContext(ctx).
		Model(&mdm.Module{}).
		Joins("JOIN access_profile_modules apm ON apm.module_id = modules.id").
		Where("apm.access_profile_id = ?", profileID).
		Order("modules.title ASC").
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rmaulana/iam-service/internal/core/datamodel/iam"
	"github.com/rmaulana/iam-service/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context, offset, limit int, includeHidden bool) ([]*iam.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&iam.User{})
	if !includeHidden {
		query = query.Where("is_hidden = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*iam.User
	err := query.
		Order("email ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *UserRepository) GetByKey(ctx context.Context, userKey string) (*iam.User, error) {
	var row iam.User
	err := r.db.WithContext(ctx).Where("user_key = ?", userKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*iam.User, error) {
	var row iam.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) Create(ctx context.Context, row *iam.User) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *UserRepository) DeleteCascade(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&iam.UserAccessProfile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&iam.User{}, userID).Error
	})
}

func (r *UserRepository) ProfileIDsByKeys(ctx context.Context, profileKeys []string) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfile{}).
		Where("profile_key IN ?", profileKeys).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) != len(profileKeys) {
		return nil, fmt.Errorf("%w: resolved %d of %d", user.ErrUnknownProfiles, len(ids), len(profileKeys))
	}
	return ids, nil
}

func (r *UserRepository) ReplaceProfiles(ctx context.Context, userID int64, profileIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&iam.UserAccessProfile{}).Error; err != nil {
			return err
		}
		for _, profileID := range profileIDs {
			assignment := iam.UserAccessProfile{UserID: userID, AccessProfileID: profileID}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *UserRepository) AssignedProfiles(ctx context.Context, userID int64) ([]*iam.AccessProfile, error) {
	var profiles []*iam.AccessProfile
	err := r.db.WithContext(ctx).
		Model(&iam.AccessProfile{}).
		Joins("JOIN user_access_profiles uap ON uap.access_profile_id = access_profiles.id").
		Where("uap.user_id = ?", userID).
		Order("access_profiles.title ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

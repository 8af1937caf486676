package auth

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rmaulana/iam-service/internal/auth"
	"github.com/rmaulana/iam-service/internal/core/datamodel/iam"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetPasswordForEmail(email string) (string, int64, error) {
	var user iam.User
	if err := r.db.Select("id", "password_hash").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, auth.ErrInvalidCredentials
		}
		return "", 0, err
	}
	return user.PasswordHash, user.ID, nil
}

func (r *Repository) SessionUserByID(userID int64) (*auth.SessionUser, error) {
	var user iam.User
	if err := r.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	return &auth.SessionUser{
		ID:             user.ID,
		UserKey:        user.UserKey,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		IsActive:       user.IsActive,
		IsSuperadmin:   user.IsSuperadmin,
		IsHidden:       user.IsHidden,
		SessionExpires: user.SessionExpires,
	}, nil
}

func (r *Repository) TouchLastAccess(userID int64, at time.Time) error {
	return r.db.Model(&iam.User{}).Where("id = ?", userID).Update("last_access_at", at).Error
}

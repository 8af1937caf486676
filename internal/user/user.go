package user

import (
	"errors"
	"time"

	"github.com/google/uuid"

	iamDatamodel "github.com/rmaulana/iam-service/internal/core/datamodel/iam"
)

// User is the domain view of an identity. PasswordHash never leaves the
// repository layer; hidden users exist only for machine access and are
// excluded from listings.
type User struct {
	UserKey        string     `json:"user_key"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	IsActive       bool       `json:"is_active"`
	IsSuperadmin   bool       `json:"is_superadmin"`
	IsHidden       bool       `json:"-"`
	SessionExpires bool       `json:"session_expires"`
	LastAccessAt   *time.Time `json:"last_access_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already in use")
	ErrUnknownProfiles = errors.New("one or more profile keys do not exist")
)

// NewUserKey mints an external user identifier.
func NewUserKey() string {
	return "usr-" + uuid.NewString()
}

func FromDataModel(u *iamDatamodel.User) *User {
	return &User{
		UserKey:        u.UserKey,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		IsActive:       u.IsActive,
		IsSuperadmin:   u.IsSuperadmin,
		IsHidden:       u.IsHidden,
		SessionExpires: u.SessionExpires,
		LastAccessAt:   u.LastAccessAt,
		CreatedAt:      u.CreatedAt,
	}
}

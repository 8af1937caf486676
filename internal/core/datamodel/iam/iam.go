package iam

import "time"

// User is the persisted identity record. The external UserKey is the opaque
// handle exposed over the API; the numeric ID never leaves the database layer.
type User struct {
	ID             int64      `gorm:"primaryKey"`
	UserKey        string     `gorm:"column:user_key;uniqueIndex;not null"`
	Email          string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash   string     `gorm:"column:password_hash;not null"`
	FirstName      string     `gorm:"column:first_name;not null"`
	LastName       string     `gorm:"column:last_name;not null"`
	IsActive       bool       `gorm:"column:is_active;default:true"`
	IsSuperadmin   bool       `gorm:"column:is_superadmin;default:false"`
	IsHidden       bool       `gorm:"column:is_hidden;default:false"`
	SessionExpires bool       `gorm:"column:session_expires;default:true"`
	LastAccessAt   *time.Time `gorm:"column:last_access_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string { return "users" }

type AccessProfile struct {
	ID          int64     `gorm:"primaryKey"`
	ProfileKey  string    `gorm:"column:profile_key;uniqueIndex;not null"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description"`
	Tag         string    `gorm:"column:tag"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;default:now()"`
}

func (AccessProfile) TableName() string { return "access_profiles" }

// UserAccessProfile links a user to an access profile (M:N).
type UserAccessProfile struct {
	ID              int64     `gorm:"primaryKey"`
	UserID          int64     `gorm:"column:user_id;not null;index"`
	AccessProfileID int64     `gorm:"column:access_profile_id;not null;index"`
	CreatedAt       time.Time `gorm:"column:created_at;default:now()"`
}

func (UserAccessProfile) TableName() string { return "user_access_profiles" }

// AccessProfileModule attaches a module to a profile. Its existence is what
// makes the profile eligible to hold grants for the module's entities;
// removing it cascades removal of the dependent Permission rows.
type AccessProfileModule struct {
	ID              int64     `gorm:"primaryKey"`
	AccessProfileID int64     `gorm:"column:access_profile_id;not null;index"`
	ModuleID        int64     `gorm:"column:module_id;not null;index"`
	CreatedAt       time.Time `gorm:"column:created_at;default:now()"`
}

func (AccessProfileModule) TableName() string { return "access_profile_modules" }

// Permission holds the four independent CRUD grants for one module entity
// under one profile-module attachment. Unique per (attachment, entity).
type Permission struct {
	ID                    int64     `gorm:"primaryKey"`
	PermissionKey         string    `gorm:"column:permission_key;uniqueIndex;not null"`
	AccessProfileModuleID int64     `gorm:"column:access_profile_module_id;not null;uniqueIndex:uq_perm_attachment_entity"`
	ModuleEntityID        int64     `gorm:"column:module_entity_id;not null;uniqueIndex:uq_perm_attachment_entity"`
	CanCreate             bool      `gorm:"column:can_create;default:false"`
	CanRead               bool      `gorm:"column:can_read;default:false"`
	CanUpdate             bool      `gorm:"column:can_update;default:false"`
	CanDelete             bool      `gorm:"column:can_delete;default:false"`
	CreatedAt             time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt             time.Time `gorm:"column:updated_at;default:now()"`
}

func (Permission) TableName() string { return "permissions" }

// CustomPermission is a catalog entry for a named capability that is not
// expressible as CRUD on an entity.
type CustomPermission struct {
	ID            int64     `gorm:"primaryKey"`
	PermissionKey string    `gorm:"column:permission_key;uniqueIndex;not null"`
	Name          string    `gorm:"column:name;uniqueIndex;not null"`
	Description   string    `gorm:"column:description"`
	CreatedAt     time.Time `gorm:"column:created_at;default:now()"`
}

func (CustomPermission) TableName() string { return "custom_permissions" }

// AccessProfileCustomPermission relates a profile to a custom permission.
// Presence means granted; absence means denied.
type AccessProfileCustomPermission struct {
	ID                 int64     `gorm:"primaryKey"`
	AccessProfileID    int64     `gorm:"column:access_profile_id;not null;uniqueIndex:uq_profile_custom"`
	CustomPermissionID int64     `gorm:"column:custom_permission_id;not null;uniqueIndex:uq_profile_custom"`
	CreatedAt          time.Time `gorm:"column:created_at;default:now()"`
}

func (AccessProfileCustomPermission) TableName() string {
	return "access_profile_custom_permissions"
}

package permission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CRUDSet holds the four independent entity grants. Partial sets are the
// common case, so the bits are explicit booleans rather than an enum.
type CRUDSet struct {
	Create bool `json:"can_create"`
	Read   bool `json:"can_read"`
	Update bool `json:"can_update"`
	Delete bool `json:"can_delete"`
}

// Union returns the bitwise OR of two grant sets.
func (s CRUDSet) Union(other CRUDSet) CRUDSet {
	return CRUDSet{
		Create: s.Create || other.Create,
		Read:   s.Read || other.Read,
		Update: s.Update || other.Update,
		Delete: s.Delete || other.Delete,
	}
}

// Contains reports whether every bit required is present in s.
func (s CRUDSet) Contains(required CRUDSet) bool {
	if required.Create && !s.Create {
		return false
	}
	if required.Read && !s.Read {
		return false
	}
	if required.Update && !s.Update {
		return false
	}
	if required.Delete && !s.Delete {
		return false
	}
	return true
}

func (s CRUDSet) IsZero() bool {
	return !s.Create && !s.Read && !s.Update && !s.Delete
}

func (s CRUDSet) String() string {
	var b strings.Builder
	if s.Create {
		b.WriteByte('C')
	}
	if s.Read {
		b.WriteByte('R')
	}
	if s.Update {
		b.WriteByte('U')
	}
	if s.Delete {
		b.WriteByte('D')
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// ParseBits converts a "CRUD" shorthand (any subset, any order) into a
// CRUDSet. Used by route guards that express requirements as strings.
func ParseBits(bits string) (CRUDSet, error) {
	var s CRUDSet
	for _, c := range strings.ToUpper(bits) {
		switch c {
		case 'C':
			s.Create = true
		case 'R':
			s.Read = true
		case 'U':
			s.Update = true
		case 'D':
			s.Delete = true
		default:
			return CRUDSet{}, fmt.Errorf("permission: invalid CRUD bit %q", string(c))
		}
	}
	return s, nil
}

// MustBits is ParseBits for static route requirement tables.
func MustBits(bits string) CRUDSet {
	s, err := ParseBits(bits)
	if err != nil {
		panic(err)
	}
	return s
}

// Requirements maps an entity name to the bits a caller must hold on it.
// Authorization is all-or-nothing across every entry.
type Requirements map[string]CRUDSet

// Principal is the authenticated actor a check is evaluated against.
// Profile membership is resolved from storage at evaluation time, not
// carried here, so checks never trust stale session state.
type Principal struct {
	UserID       int64
	UserKey      string
	Email        string
	IsSuperadmin bool
}

// Entity names for the IAM module's own resources, used to guard the
// IAM endpoints themselves.
const (
	EntityAccessProfile          = "iam_access_profile"
	EntityAccessProfileModule    = "iam_access_profile_module"
	EntityAccessProfilePerms     = "iam_access_profile_permission"
	EntityCustomPermission       = "iam_custom_permission"
	EntityAccessProfileCustomPer = "iam_access_profile_custom_permission"
	EntityUser                   = "iam_user"
)

// NewPermissionKey returns a fresh opaque external key for a Permission row.
func NewPermissionKey() string {
	return "prm-" + uuid.NewString()
}

// NewCustomPermissionKey returns a fresh external key for a catalog entry.
func NewCustomPermissionKey() string {
	return "cpm-" + uuid.NewString()
}

var (
	ErrForbidden          = errors.New("permission: forbidden")
	ErrProfileNotFound    = errors.New("permission: access profile not found")
	ErrModuleNotFound     = errors.New("permission: module not found")
	ErrPermissionNotFound = errors.New("permission: permission row not found")
	ErrCustomNotFound     = errors.New("permission: custom permission not found")
	ErrEmptyModuleList    = errors.New("permission: module list cannot be empty")
)

// ProfilePermissions is the effective view of a profile's grants: every
// entity of every attached module, with zero-grant rows synthesized for
// entities that have no Permission row yet, plus the full custom permission
// catalog flagged with the profile's relation state.
type ProfilePermissions struct {
	ProfileKey        string                  `json:"profile_key"`
	Modules           []ModulePermissions     `json:"modules"`
	CustomPermissions []CustomPermissionState `json:"custom_permissions"`
}

type ModulePermissions struct {
	ModuleKey string             `json:"module_key"`
	Title     string             `json:"title"`
	Entities  []EntityPermission `json:"entities"`
}

// EntityPermission carries the grant bits for one entity. PermissionKey is
// empty for synthesized zero-grant entries that have no stored row.
type EntityPermission struct {
	PermissionKey string  `json:"permission_key,omitempty"`
	Entity        string  `json:"entity"`
	Label         string  `json:"label"`
	Bits          CRUDSet `json:"grants"`
}

type CustomPermissionState struct {
	PermissionKey string `json:"permission_key"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Granted       bool   `json:"granted"`
}

// EntityGrantRow is one stored Permission row resolved to its entity name,
// as returned by the attachment-scoped join. The evaluator folds these with
// Union; rows whose attachment no longer exists are never returned.
type EntityGrantRow struct {
	Entity string
	Bits   CRUDSet
}

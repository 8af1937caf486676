package accessprofile

import (
	"errors"
	"time"

	"github.com/google/uuid"

	iamDatamodel "github.com/rmaulana/iam-service/internal/core/datamodel/iam"
)

// AccessProfile is the domain view of a profile. The external ProfileKey is
// the only identifier handed to clients.
type AccessProfile struct {
	ProfileKey  string    `json:"profile_key"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tag         string    `json:"tag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("access profile not found")

// NewProfileKey mints an external profile identifier.
func NewProfileKey() string {
	return "prf-" + uuid.NewString()
}

func FromDataModel(p *iamDatamodel.AccessProfile) *AccessProfile {
	return &AccessProfile{
		ProfileKey:  p.ProfileKey,
		Title:       p.Title,
		Description: p.Description,
		Tag:         p.Tag,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

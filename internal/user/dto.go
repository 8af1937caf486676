package user

import "strings"

// CreateUserDTO carries the writable fields for a new user.
type CreateUserDTO struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	IsSuperadmin   bool   `json:"is_superadmin"`
	IsHidden       bool   `json:"is_hidden"`
	SessionExpires bool   `json:"session_expires"`
}

// SetProfilesDTO is the full-replace access profile assignment payload.
type SetProfilesDTO struct {
	Profiles []string `json:"profiles"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

const minPasswordLength = 8

func (d CreateUserDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if !strings.Contains(d.Email, "@") {
		return ValidationError{Msg: "email is malformed"}
	}
	if len(d.Password) < minPasswordLength {
		return ValidationError{Msg: "password must be at least 8 characters"}
	}
	if d.FirstName == "" {
		return ValidationError{Msg: "first_name is required"}
	}
	return nil
}

func (d SetProfilesDTO) Validate() error {
	for _, key := range d.Profiles {
		if key == "" {
			return ValidationError{Msg: "profile keys must not be empty"}
		}
	}
	return nil
}

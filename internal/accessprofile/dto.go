package accessprofile

// CreateProfileDTO carries the writable profile fields on create.
type CreateProfileDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
}

// UpdateProfileDTO carries the writable profile fields on update.
type UpdateProfileDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
}

// AddModuleDTO names the module to attach to a profile.
type AddModuleDTO struct {
	ModuleKey string `json:"module_key"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d CreateProfileDTO) Validate() error {
	if d.Title == "" {
		return ValidationError{Msg: "title is required"}
	}
	return nil
}

func (d UpdateProfileDTO) Validate() error {
	if d.Title == "" {
		return ValidationError{Msg: "title is required"}
	}
	return nil
}

func (d AddModuleDTO) Validate() error {
	if d.ModuleKey == "" {
		return ValidationError{Msg: "module_key is required"}
	}
	return nil
}

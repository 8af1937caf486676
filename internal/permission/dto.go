package permission

// UpdateProfilePermissionsDTO is the bulk payload for rewriting a profile's
// grants: entity rows are overwritten, custom permissions related or
// unrelated according to the granted flag.
type UpdateProfilePermissionsDTO struct {
	EntityPermissions []EntityPermissionUpdate `json:"entity_permissions"`
	CustomPermissions []CustomPermissionUpdate `json:"custom_permissions"`
}

type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d UpdateProfilePermissionsDTO) Validate() error {
	if len(d.EntityPermissions) == 0 && len(d.CustomPermissions) == 0 {
		return ValidationError{Msg: "at least one permission update is required"}
	}
	for _, update := range d.EntityPermissions {
		if update.PermissionKey == "" {
			return ValidationError{Msg: "entity permission update is missing permission_key"}
		}
	}
	for _, update := range d.CustomPermissions {
		if update.PermissionKey == "" {
			return ValidationError{Msg: "custom permission update is missing permission_key"}
		}
	}
	return nil
}

// SetProfileModulesDTO is the full-replace module list payload.
type SetProfileModulesDTO struct {
	Modules []string `json:"modules"`
}

func (d SetProfileModulesDTO) Validate() error {
	if len(d.Modules) == 0 {
		return ValidationError{Msg: "module list cannot be empty"}
	}
	for _, key := range d.Modules {
		if key == "" {
			return ValidationError{Msg: "module key cannot be empty"}
		}
	}
	return nil
}

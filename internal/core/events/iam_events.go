package events

import (
	"time"

	"github.com/google/uuid"
)

// Audit events emitted by the IAM mutators. Subscribers get them after the
// storage transaction commits; a failed mutation emits nothing.
const (
	EventTypeUserCreated            = "iam.user.created"
	EventTypeUserRemoved            = "iam.user.removed"
	EventTypeUserProfilesChanged    = "iam.user.profiles_changed"
	EventTypeProfileCreated         = "iam.profile.created"
	EventTypeProfileRemoved         = "iam.profile.removed"
	EventTypeModuleAttached         = "iam.profile.module_attached"
	EventTypeModuleDetached         = "iam.profile.module_detached"
	EventTypeProfileModulesReplaced = "iam.profile.modules_replaced"
	EventTypePermissionUpdated      = "iam.permission.updated"
	EventTypeCustomPermissionChange = "iam.custom_permission.relation_changed"
)

// NewAuditEvent builds a generic audit event carrying the mutated subject
// and whatever payload the mutator finds worth recording.
func NewAuditEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type PermissionUpdatedEvent struct {
	BaseEvent
	PermissionKey string `json:"permission_key"`
	Grants        string `json:"grants"`
}

func NewPermissionUpdatedEvent(permissionKey, grants string) *PermissionUpdatedEvent {
	return &PermissionUpdatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionUpdated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"permission_key": permissionKey,
				"grants":         grants,
			},
		},
		PermissionKey: permissionKey,
		Grants:        grants,
	}
}

type ModuleAttachmentEvent struct {
	BaseEvent
	ProfileKey string `json:"profile_key"`
	ModuleKey  string `json:"module_key"`
}

func NewModuleAttachedEvent(profileKey, moduleKey string) *ModuleAttachmentEvent {
	return newModuleAttachmentEvent(EventTypeModuleAttached, profileKey, moduleKey)
}

func NewModuleDetachedEvent(profileKey, moduleKey string) *ModuleAttachmentEvent {
	return newModuleAttachmentEvent(EventTypeModuleDetached, profileKey, moduleKey)
}

func newModuleAttachmentEvent(eventType, profileKey, moduleKey string) *ModuleAttachmentEvent {
	return &ModuleAttachmentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"profile_key": profileKey,
				"module_key":  moduleKey,
			},
		},
		ProfileKey: profileKey,
		ModuleKey:  moduleKey,
	}
}

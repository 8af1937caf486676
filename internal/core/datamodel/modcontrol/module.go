package modcontrol

import "time"

// Module is owned by the module-control collaborator; the IAM core only
// reads it.
type Module struct {
	ID        int64     `gorm:"primaryKey"`
	ModuleKey string    `gorm:"column:module_key;uniqueIndex;not null"`
	Title     string    `gorm:"column:title;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Module) TableName() string { return "modules" }

// ModuleEntity is a resource type a module exposes to CRUD permissioning.
type ModuleEntity struct {
	ID        int64     `gorm:"primaryKey"`
	ModuleID  int64     `gorm:"column:module_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Label     string    `gorm:"column:label;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (ModuleEntity) TableName() string { return "module_entities" }

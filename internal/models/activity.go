package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures an auditable mutation. Rows are append-only.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UserID     string            `gorm:"size:64;not null;index" json:"user_id"`
	ActionType string            `gorm:"size:64;not null;index" json:"action_type"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   string            `gorm:"size:64" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// TableName overrides the default table name.
func (ActivityLog) TableName() string {
	return "activity_feed"
}

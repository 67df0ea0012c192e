package models

import "time"

// Module identifies a functional area of the platform that permissions are scoped to.
type Module struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName overrides the default table name.
func (Module) TableName() string {
	return "modules"
}

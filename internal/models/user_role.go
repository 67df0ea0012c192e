package models

import "time"

// UserRole records that a user holds a role.
type UserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_user_role" json:"user_id"`
	Role      Role      `gorm:"size:64;not null;uniqueIndex:idx_user_role;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the default table name.
func (UserRole) TableName() string {
	return "user_roles"
}

// Profile is the read-only slice of the user directory used to decorate output.
type Profile struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	FullName  string `gorm:"size:255" json:"full_name"`
	AvatarURL string `gorm:"size:512" json:"avatar_url"`
}

// TableName overrides the default table name.
func (Profile) TableName() string {
	return "profiles"
}

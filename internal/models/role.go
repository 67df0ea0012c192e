package models

import (
	"strings"
	"time"
)

// Role identifies a capability bundle. Built-in roles form a closed set; any other
// value is a custom role carrying a normalized snake_case identifier.
type Role string

// Built-in roles.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
	RoleGuardian   Role = "guardian"
)

// BuiltinRoles lists the built-in roles ordered from most to least privileged.
var BuiltinRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent, RoleGuardian}

var rolePriority = map[Role]int{
	RoleSuperAdmin: 5,
	RoleAdmin:      4,
	RoleTeacher:    3,
	RoleGuardian:   2,
	RoleStudent:    1,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsBuiltin reports whether the role belongs to the closed built-in set.
func (r Role) IsBuiltin() bool {
	_, ok := rolePriority[r]
	return ok
}

// IsCustom reports whether the role is a runtime-created role.
func (r Role) IsCustom() bool {
	return r != "" && !r.IsBuiltin()
}

// ParseRole lowercases and trims a raw role identifier without further validation.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// PrimaryRole picks the highest-priority role of the set. Custom roles rank below
// every built-in role. An empty set yields "".
func PrimaryRole(roles []Role) Role {
	var primary Role
	best := -1
	for _, role := range roles {
		if p := rolePriority[role]; p > best {
			best = p
			primary = role
		}
	}
	return primary
}

// HasRole reports whether target appears in roles.
func HasRole(roles []Role, target Role) bool {
	for _, role := range roles {
		if role == target {
			return true
		}
	}
	return false
}

// CustomRole persists a role created at runtime.
type CustomRole struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoleName    string    `gorm:"size:64;uniqueIndex;not null" json:"role_name"`
	DisplayName string    `gorm:"size:128;not null" json:"display_name"`
	CreatedBy   string    `gorm:"size:64" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName overrides the default table name.
func (CustomRole) TableName() string {
	return "custom_roles"
}

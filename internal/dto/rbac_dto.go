package dto

import (
	"time"

	"github.com/noah-isme/gema-access/internal/models"
)

// RoleSummary describes a role with the number of users holding it.
type RoleSummary struct {
	Role        models.Role `json:"role"`
	DisplayName string      `json:"display_name"`
	Builtin     bool        `json:"builtin"`
	UserCount   int64       `json:"user_count"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
}

// CreateRoleRequest captures the payload for creating a custom role.
type CreateRoleRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// SetPermissionRequest sets a single permission flag.
type SetPermissionRequest struct {
	Value *bool `json:"value" validate:"required"`
}

// SetAllRequest grants or clears every flag of a cell.
type SetAllRequest struct {
	Grant *bool `json:"grant" validate:"required"`
}

// PermissionEditRequest is one cell edit of a bulk save. Only fields present in
// the payload are written.
type PermissionEditRequest struct {
	Role        string                 `json:"role" validate:"required,max=64"`
	ModuleID    string                 `json:"module_id" validate:"required,max=64"`
	Permissions models.PermissionPatch `json:"permissions"`
}

// BulkSaveRequest wraps a batch of cell edits.
type BulkSaveRequest struct {
	Edits []PermissionEditRequest `json:"edits" validate:"required,min=1,max=500,dive"`
}

// BulkSaveResponse reports how many edits were applied.
type BulkSaveResponse struct {
	Applied int `json:"applied"`
}

// AssignRoleRequest captures the payload for assigning a role to a user.
type AssignRoleRequest struct {
	Role string `json:"role" validate:"required,max=64"`
}

// PermissionCellResponse serializes one (role, module) cell.
type PermissionCellResponse struct {
	Role        models.Role          `json:"role"`
	ModuleID    string               `json:"module_id"`
	Permissions models.PermissionSet `json:"permissions"`
}

// RolePermissionsResponse lists the cells of one role keyed by module id.
type RolePermissionsResponse struct {
	Role        models.Role                     `json:"role"`
	Permissions map[string]models.PermissionSet `json:"permissions"`
}

// RoleMatrixResponse is the full role × module matrix.
type RoleMatrixResponse struct {
	Roles    []models.Role                                   `json:"roles"`
	Modules  []models.Module                                 `json:"modules"`
	Matrix   map[models.Role]map[string]models.PermissionSet `json:"matrix"`
	CacheHit bool                                            `json:"cache_hit"`
}

// UserMatrixRow is one user's effective permissions across modules.
type UserMatrixRow struct {
	UserID      string                          `json:"user_id"`
	DisplayName string                          `json:"display_name"`
	Roles       []models.Role                   `json:"roles"`
	Permissions map[string]models.PermissionSet `json:"permissions"`
}

// UserMatrixResponse wraps the user × module effective matrix.
type UserMatrixResponse struct {
	Items []UserMatrixRow `json:"items"`
}

// UserRolesResponse lists the roles held by a user.
type UserRolesResponse struct {
	UserID      string        `json:"user_id"`
	Roles       []models.Role `json:"roles"`
	PrimaryRole models.Role   `json:"primary_role"`
}

// EffectivePermissionResponse serializes the resolved permissions of a user on a module.
type EffectivePermissionResponse struct {
	UserID      string               `json:"user_id"`
	ModuleID    string               `json:"module_id"`
	Permissions models.PermissionSet `json:"permissions"`
}

// EffectivePermissionsResponse lists the resolved permissions of a user keyed by module id.
type EffectivePermissionsResponse struct {
	UserID      string                          `json:"user_id"`
	Permissions map[string]models.PermissionSet `json:"permissions"`
}

// AuthorizeResponse reports the outcome of an authorization check.
type AuthorizeResponse struct {
	UserID  string `json:"user_id"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

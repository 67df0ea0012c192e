package models

import (
	"strings"
	"time"
)

// Action names one of the six capabilities a role may hold on a module.
type Action string

// Supported actions.
const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionAssign  Action = "assign"
	ActionApprove Action = "approve"
)

// Actions lists every action in column order.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssign, ActionApprove}

// ParseAction accepts either the bare action ("read") or its column form ("can_read").
func ParseAction(raw string) (Action, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "can_")
	action := Action(value)
	for _, candidate := range Actions {
		if candidate == action {
			return action, true
		}
	}
	return "", false
}

// Column returns the database column backing the action.
func (a Action) Column() string {
	return "can_" + string(a)
}

// PermissionSet holds the six capability flags for one (role, module) cell.
type PermissionSet struct {
	CanCreate  bool `json:"can_create"`
	CanRead    bool `json:"can_read"`
	CanUpdate  bool `json:"can_update"`
	CanDelete  bool `json:"can_delete"`
	CanAssign  bool `json:"can_assign"`
	CanApprove bool `json:"can_approve"`
}

// FullPermissionSet returns a set with every flag enabled.
func FullPermissionSet() PermissionSet {
	return PermissionSet{true, true, true, true, true, true}
}

// Get reports the flag for the action. Unknown actions are denied.
func (p PermissionSet) Get(action Action) bool {
	switch action {
	case ActionCreate:
		return p.CanCreate
	case ActionRead:
		return p.CanRead
	case ActionUpdate:
		return p.CanUpdate
	case ActionDelete:
		return p.CanDelete
	case ActionAssign:
		return p.CanAssign
	case ActionApprove:
		return p.CanApprove
	default:
		return false
	}
}

// With returns a copy of the set with the action flag replaced.
func (p PermissionSet) With(action Action, value bool) PermissionSet {
	switch action {
	case ActionCreate:
		p.CanCreate = value
	case ActionRead:
		p.CanRead = value
	case ActionUpdate:
		p.CanUpdate = value
	case ActionDelete:
		p.CanDelete = value
	case ActionAssign:
		p.CanAssign = value
	case ActionApprove:
		p.CanApprove = value
	}
	return p
}

// Union returns the field-wise OR of both sets.
func (p PermissionSet) Union(other PermissionSet) PermissionSet {
	return PermissionSet{
		CanCreate:  p.CanCreate || other.CanCreate,
		CanRead:    p.CanRead || other.CanRead,
		CanUpdate:  p.CanUpdate || other.CanUpdate,
		CanDelete:  p.CanDelete || other.CanDelete,
		CanAssign:  p.CanAssign || other.CanAssign,
		CanApprove: p.CanApprove || other.CanApprove,
	}
}

// Any reports whether at least one flag is granted.
func (p PermissionSet) Any() bool {
	return p != PermissionSet{}
}

// PermissionPatch carries a field-level edit; nil fields are left untouched.
type PermissionPatch struct {
	CanCreate  *bool `json:"can_create,omitempty"`
	CanRead    *bool `json:"can_read,omitempty"`
	CanUpdate  *bool `json:"can_update,omitempty"`
	CanDelete  *bool `json:"can_delete,omitempty"`
	CanAssign  *bool `json:"can_assign,omitempty"`
	CanApprove *bool `json:"can_approve,omitempty"`
}

// PatchFromSet converts a full set into a patch that writes all six fields.
func PatchFromSet(set PermissionSet) PermissionPatch {
	return PermissionPatch{
		CanCreate:  boolPtr(set.CanCreate),
		CanRead:    boolPtr(set.CanRead),
		CanUpdate:  boolPtr(set.CanUpdate),
		CanDelete:  boolPtr(set.CanDelete),
		CanAssign:  boolPtr(set.CanAssign),
		CanApprove: boolPtr(set.CanApprove),
	}
}

// Fields returns the touched actions with their target values, in column order.
func (p PermissionPatch) Fields() map[Action]bool {
	fields := make(map[Action]bool, len(Actions))
	pairs := []struct {
		action Action
		value  *bool
	}{
		{ActionCreate, p.CanCreate},
		{ActionRead, p.CanRead},
		{ActionUpdate, p.CanUpdate},
		{ActionDelete, p.CanDelete},
		{ActionAssign, p.CanAssign},
		{ActionApprove, p.CanApprove},
	}
	for _, pair := range pairs {
		if pair.value != nil {
			fields[pair.action] = *pair.value
		}
	}
	return fields
}

// IsEmpty reports whether the patch touches no field.
func (p PermissionPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

func boolPtr(v bool) *bool {
	return &v
}

// RoleModulePermission is the persisted grant for one (role, module) cell.
type RoleModulePermission struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Role       Role      `gorm:"size:64;not null;uniqueIndex:idx_role_module" json:"role"`
	ModuleID   string    `gorm:"size:36;not null;uniqueIndex:idx_role_module" json:"module_id"`
	CanCreate  bool      `gorm:"not null" json:"can_create"`
	CanRead    bool      `gorm:"not null" json:"can_read"`
	CanUpdate  bool      `gorm:"not null" json:"can_update"`
	CanDelete  bool      `gorm:"not null" json:"can_delete"`
	CanAssign  bool      `gorm:"not null" json:"can_assign"`
	CanApprove bool      `gorm:"not null" json:"can_approve"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName overrides the default table name.
func (RoleModulePermission) TableName() string {
	return "role_module_permissions"
}

// Set extracts the capability flags of the row.
func (p RoleModulePermission) Set() PermissionSet {
	return PermissionSet{
		CanCreate:  p.CanCreate,
		CanRead:    p.CanRead,
		CanUpdate:  p.CanUpdate,
		CanDelete:  p.CanDelete,
		CanAssign:  p.CanAssign,
		CanApprove: p.CanApprove,
	}
}

// UserModulePermission is the legacy per-user override table of four flags. It is read for
// historical display only and never written or consulted during resolution.
type UserModulePermission struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	ModuleID  string    `gorm:"size:36;not null" json:"module_id"`
	CanCreate bool      `json:"can_create"`
	CanRead   bool      `json:"can_read"`
	CanUpdate bool      `json:"can_update"`
	CanDelete bool      `json:"can_delete"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the default table name.
func (UserModulePermission) TableName() string {
	return "user_module_permissions"
}

package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-access/internal/models"
)

func TestDecide(t *testing.T) {
	custom := models.Role("lab_assistant")

	cases := []struct {
		name   string
		acting []models.Role
		target models.Role
		op     Operation
		want   Decision
	}{
		{"super admin assigns admin", []models.Role{models.RoleSuperAdmin}, models.RoleAdmin, OpAssign, Allow},
		{"super admin revokes super admin", []models.Role{models.RoleSuperAdmin}, models.RoleSuperAdmin, OpRevoke, Allow},
		{"super admin edits custom role", []models.Role{models.RoleSuperAdmin}, custom, OpEditPermission, Allow},
		{"super admin creates role", []models.Role{models.RoleSuperAdmin}, custom, OpCreateRole, Allow},
		{"admin assigns teacher", []models.Role{models.RoleAdmin}, models.RoleTeacher, OpAssign, Allow},
		{"admin assigns student", []models.Role{models.RoleAdmin}, models.RoleStudent, OpAssign, Allow},
		{"admin revokes guardian", []models.Role{models.RoleAdmin}, models.RoleGuardian, OpRevoke, Allow},
		{"admin assigns admin", []models.Role{models.RoleAdmin}, models.RoleAdmin, OpAssign, Deny},
		{"admin assigns super admin", []models.Role{models.RoleAdmin}, models.RoleSuperAdmin, OpAssign, Deny},
		{"admin assigns custom role", []models.Role{models.RoleAdmin}, custom, OpAssign, Deny},
		{"admin edits permissions", []models.Role{models.RoleAdmin}, models.RoleStudent, OpEditPermission, Deny},
		{"admin creates role", []models.Role{models.RoleAdmin}, custom, OpCreateRole, Deny},
		{"teacher assigns student", []models.Role{models.RoleTeacher}, models.RoleStudent, OpAssign, Deny},
		{"no roles", nil, models.RoleStudent, OpAssign, Deny},
		{"admin with super admin", []models.Role{models.RoleAdmin, models.RoleSuperAdmin}, models.RoleAdmin, OpAssign, Allow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Decide(tc.acting, tc.target, tc.op))
		})
	}
}

func TestAuthorizeWrapsDenial(t *testing.T) {
	err := authorize(admin, models.RoleAdmin, OpAssign)
	require.ErrorIs(t, err, ErrAuthorization)

	require.NoError(t, authorize(superAdmin, models.RoleAdmin, OpAssign))
}

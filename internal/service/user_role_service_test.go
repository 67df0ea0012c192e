package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

func TestUserRoleServiceAdminAuthority(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	require.NoError(t, stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleTeacher))
	require.NoError(t, stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleGuardian))

	err := stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleAdmin)
	require.ErrorIs(t, err, ErrAuthorization)

	err = stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleSuperAdmin)
	require.ErrorIs(t, err, ErrAuthorization)

	require.NoError(t, stack.userRoles.AssignRole(ctx, superAdmin, "u-1", models.RoleAdmin))

	err = stack.userRoles.RevokeRole(ctx, admin, "u-1", models.RoleAdmin)
	require.ErrorIs(t, err, ErrAuthorization)

	err = stack.userRoles.AssignRole(ctx, teacher, "u-2", models.RoleStudent)
	require.ErrorIs(t, err, ErrAuthorization)

	roles, err := stack.userRoles.RolesOf(ctx, "u-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []models.Role{models.RoleTeacher, models.RoleGuardian, models.RoleAdmin}, roles)

	roles, err = stack.userRoles.RolesOf(ctx, "u-2")
	require.NoError(t, err)
	require.Empty(t, roles)
}

func TestUserRoleServiceRejectsNoOpChanges(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	require.NoError(t, stack.userRoles.AssignRole(ctx, superAdmin, "u-1", models.RoleStudent))

	err := stack.userRoles.AssignRole(ctx, superAdmin, "u-1", models.RoleStudent)
	require.ErrorIs(t, err, ErrValidation)

	err = stack.userRoles.RevokeRole(ctx, superAdmin, "u-1", models.RoleTeacher)
	require.ErrorIs(t, err, ErrValidation)

	err = stack.userRoles.AssignRole(ctx, superAdmin, "  ", models.RoleStudent)
	require.ErrorIs(t, err, ErrValidation)

	err = stack.userRoles.AssignRole(ctx, superAdmin, "u-1", models.Role("ghost"))
	require.ErrorIs(t, err, ErrValidation)

	require.Equal(t, int64(1), stack.activityCount(t))
}

func TestUserRoleServiceValidatesBeforeAuthority(t *testing.T) {
	stack := newTestStack(t)

	err := stack.userRoles.AssignRole(context.Background(), teacher, "u-1", models.Role("ghost"))
	require.ErrorIs(t, err, ErrValidation)
	require.NotErrorIs(t, err, ErrAuthorization)
}

func TestUserRoleServiceToggleRole(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	held, err := stack.userRoles.ToggleRole(ctx, admin, "u-1", models.RoleStudent)
	require.NoError(t, err)
	require.True(t, held)

	held, err = stack.userRoles.ToggleRole(ctx, admin, "u-1", models.RoleStudent)
	require.NoError(t, err)
	require.False(t, held)

	_, err = stack.userRoles.ToggleRole(ctx, admin, "u-1", models.RoleAdmin)
	require.ErrorIs(t, err, ErrAuthorization)

	entries, err := stack.activity.Query(ctx, dto.ActivityQuery{EntityType: "user"})
	require.NoError(t, err)
	require.Len(t, entries.Items, 2)
	require.Equal(t, ActionRoleRevoked, entries.Items[0].ActionType)
	require.Equal(t, ActionRoleAssigned, entries.Items[1].ActionType)
	require.Equal(t, "u-1", entries.Items[0].EntityID)
	require.Equal(t, "student", entries.Items[0].Metadata["role"])
	require.Equal(t, admin.ID, entries.Items[0].UserID)
}

func TestUserRoleServiceGuardsLastSuperAdmin(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	stack.grantRole(t, "root", models.RoleSuperAdmin)

	err := stack.userRoles.RevokeRole(ctx, superAdmin, "root", models.RoleSuperAdmin)
	require.ErrorIs(t, err, ErrLastSuperAdmin)
	require.ErrorIs(t, err, ErrValidation)

	stack.grantRole(t, "deputy", models.RoleSuperAdmin)
	require.NoError(t, stack.userRoles.RevokeRole(ctx, superAdmin, "root", models.RoleSuperAdmin))

	unguarded := NewUserRoleService(
		repository.NewUserRoleRepository(stack.db),
		stack.registry,
		stack.cache,
		stack.activity,
		UserRoleOptions{GuardLastSuperAdmin: false},
		zerolog.Nop(),
	)
	require.NoError(t, unguarded.RevokeRole(ctx, superAdmin, "deputy", models.RoleSuperAdmin))
}

// racingHolderRepo reports a second super_admin to plain counts while the locked
// delete sees the other holder already gone.
type racingHolderRepo struct {
	repository.UserRoleRepository
}

func (racingHolderRepo) CountHolders(context.Context, models.Role) (int64, error) {
	return 2, nil
}

func (racingHolderRepo) Delete(context.Context, string, models.Role) (int64, error) {
	return 1, nil
}

func (racingHolderRepo) DeleteUnlessLast(context.Context, string, models.Role) (int64, error) {
	return 0, repository.ErrLastHolder
}

func TestUserRoleServiceLastSuperAdminCheckIsAtomicWithDelete(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	stack.grantRole(t, "root", models.RoleSuperAdmin)
	before := stack.activityCount(t)

	svc := NewUserRoleService(
		racingHolderRepo{UserRoleRepository: repository.NewUserRoleRepository(stack.db)},
		stack.registry,
		stack.cache,
		stack.activity,
		UserRoleOptions{GuardLastSuperAdmin: true},
		zerolog.Nop(),
	)

	err := svc.RevokeRole(ctx, superAdmin, "root", models.RoleSuperAdmin)
	require.ErrorIs(t, err, ErrLastSuperAdmin)
	require.Equal(t, before, stack.activityCount(t))

	roles, err := stack.userRoles.RolesOf(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, []models.Role{models.RoleSuperAdmin}, roles)
}

func TestUserRoleServiceAssignsCustomRoles(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	role, err := stack.customRoles.CreateCustomRole(ctx, superAdmin, "Lab Assistant")
	require.NoError(t, err)

	err = stack.userRoles.AssignRole(ctx, admin, "u-1", role)
	require.ErrorIs(t, err, ErrAuthorization)

	require.NoError(t, stack.userRoles.AssignRole(ctx, superAdmin, "u-1", role))

	roles, err := stack.userRoles.RolesOf(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, []models.Role{role}, roles)
}

func TestUserRoleServiceDeniedAssignmentWritesNothing(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	err := stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleSuperAdmin)
	require.ErrorIs(t, err, ErrAuthorization)

	var rows int64
	require.NoError(t, stack.db.Model(&models.UserRole{}).Count(&rows).Error)
	require.Zero(t, rows)
	require.Zero(t, stack.activityCount(t))

	require.NoError(t, stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleTeacher))
	require.NoError(t, stack.db.Model(&models.UserRole{}).Where("user_id = ? AND role = ?", "u-1", models.RoleTeacher).Count(&rows).Error)
	require.Equal(t, int64(1), rows)
}

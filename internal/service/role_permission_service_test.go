package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

func TestRolePermissionServiceSetAll(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	library := stack.moduleID(t, "library")

	set, err := stack.permissions.SetAll(ctx, superAdmin, models.RoleTeacher, library, true)
	require.NoError(t, err)
	require.Equal(t, models.FullPermissionSet(), set)

	listed, err := stack.permissions.ListForRole(ctx, models.RoleTeacher)
	require.NoError(t, err)
	require.Equal(t, models.FullPermissionSet(), listed[library])

	set, err = stack.permissions.SetAll(ctx, superAdmin, models.RoleTeacher, library, false)
	require.NoError(t, err)
	require.Equal(t, models.PermissionSet{}, set)

	listed, err = stack.permissions.ListForRole(ctx, models.RoleTeacher)
	require.NoError(t, err)
	require.Equal(t, models.PermissionSet{}, listed[library])
}

func TestRolePermissionServiceSetRolePermissionIsIdempotent(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	courses := stack.moduleID(t, "courses")

	first, err := stack.permissions.SetRolePermission(ctx, superAdmin, models.RoleStudent, courses, "can_read", true)
	require.NoError(t, err)
	second, err := stack.permissions.SetRolePermission(ctx, superAdmin, models.RoleStudent, courses, "read", true)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, models.PermissionSet{CanRead: true}, second)

	var rows int64
	require.NoError(t, stack.db.Model(&models.RoleModulePermission{}).Where("role = ?", models.RoleStudent).Count(&rows).Error)
	require.Equal(t, int64(1), rows)
}

func TestRolePermissionServiceToggleFieldKeepsOtherFlags(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	quizzes := stack.moduleID(t, "quizzes")

	set, err := stack.permissions.ToggleField(ctx, superAdmin, models.RoleTeacher, quizzes, "can_create")
	require.NoError(t, err)
	require.Equal(t, models.PermissionSet{CanCreate: true}, set)

	_, err = stack.permissions.SetRolePermission(ctx, superAdmin, models.RoleTeacher, quizzes, "can_approve", true)
	require.NoError(t, err)

	set, err = stack.permissions.ToggleField(ctx, superAdmin, models.RoleTeacher, "quizzes", "can_create")
	require.NoError(t, err)
	require.Equal(t, models.PermissionSet{CanApprove: true}, set)
}

func TestRolePermissionServiceRejectsInvalidInput(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	library := stack.moduleID(t, "library")

	_, err := stack.permissions.ToggleField(ctx, superAdmin, models.RoleTeacher, library, "can_fly")
	require.ErrorIs(t, err, ErrValidation)

	_, err = stack.permissions.SetAll(ctx, superAdmin, models.Role("ghost"), library, true)
	require.ErrorIs(t, err, ErrValidation)

	_, err = stack.permissions.SetAll(ctx, superAdmin, models.RoleTeacher, "missing-module", true)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = stack.permissions.SetAll(ctx, admin, models.RoleStudent, library, true)
	require.ErrorIs(t, err, ErrAuthorization)

	_, err = stack.permissions.ListForRole(ctx, models.Role("ghost"))
	require.ErrorIs(t, err, ErrValidation)

	var rows int64
	require.NoError(t, stack.db.Model(&models.RoleModulePermission{}).Count(&rows).Error)
	require.Zero(t, rows)
	require.Zero(t, stack.activityCount(t))
}

func TestRolePermissionServiceBulkSaveValidatesBeforeWriting(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	edits := []PermissionEdit{
		{Role: models.RoleTeacher, ModuleID: stack.moduleID(t, "lessons"), Patch: models.PermissionPatch{CanRead: boolRef(true)}},
		{Role: models.RoleStudent, ModuleID: "nope", Patch: models.PermissionPatch{CanRead: boolRef(true)}},
	}

	applied, err := stack.permissions.BulkSave(ctx, superAdmin, edits)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, applied)

	var rows int64
	require.NoError(t, stack.db.Model(&models.RoleModulePermission{}).Count(&rows).Error)
	require.Zero(t, rows)

	_, err = stack.permissions.BulkSave(ctx, superAdmin, []PermissionEdit{{Role: models.RoleTeacher, ModuleID: stack.moduleID(t, "lessons")}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = stack.permissions.BulkSave(ctx, superAdmin, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRolePermissionServiceBulkSaveWritesOnlyTouchedFields(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	lessons := stack.moduleID(t, "lessons")

	_, err := stack.permissions.SetAll(ctx, superAdmin, models.RoleTeacher, lessons, true)
	require.NoError(t, err)

	applied, err := stack.permissions.BulkSave(ctx, superAdmin, []PermissionEdit{
		{Role: models.RoleTeacher, ModuleID: lessons, Patch: models.PermissionPatch{CanDelete: boolRef(false)}},
		{Role: models.RoleStudent, ModuleID: lessons, Patch: models.PermissionPatch{CanRead: boolRef(true)}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	teacherSet, err := stack.permissions.ListForRole(ctx, models.RoleTeacher)
	require.NoError(t, err)
	require.Equal(t, models.FullPermissionSet().With(models.ActionDelete, false), teacherSet[lessons])

	studentSet, err := stack.permissions.ListForRole(ctx, models.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, models.PermissionSet{CanRead: true}, studentSet[lessons])

	entries, err := stack.activity.Query(ctx, dto.ActivityQuery{ActionType: ActionPermissionsBulkSaved})
	require.NoError(t, err)
	require.Len(t, entries.Items, 2)
	for _, entry := range entries.Items {
		require.Equal(t, false, entry.Metadata["partial"])
		cells, ok := entry.Metadata["edits"].([]interface{})
		require.True(t, ok)
		require.Len(t, cells, 1)
	}
}

type failingPermissionRepo struct {
	repository.RolePermissionRepository
	failModule string
}

func (r failingPermissionRepo) UpsertFields(ctx context.Context, role models.Role, moduleID string, fields map[models.Action]bool) (models.PermissionSet, error) {
	if moduleID == r.failModule {
		return models.PermissionSet{}, errors.New("disk full")
	}
	return r.RolePermissionRepository.UpsertFields(ctx, role, moduleID, fields)
}

func TestRolePermissionServiceBulkSaveStopsAtFirstStoreFailure(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	courses := stack.moduleID(t, "courses")
	quizzes := stack.moduleID(t, "quizzes")
	library := stack.moduleID(t, "library")

	repo := failingPermissionRepo{
		RolePermissionRepository: repository.NewRolePermissionRepository(stack.db),
		failModule:               quizzes,
	}
	svc := NewRolePermissionService(repo, stack.registry, stack.cache, stack.activity, zerolog.Nop())

	applied, err := svc.BulkSave(ctx, superAdmin, []PermissionEdit{
		{Role: models.RoleTeacher, ModuleID: courses, Patch: models.PermissionPatch{CanRead: boolRef(true)}},
		{Role: models.RoleTeacher, ModuleID: quizzes, Patch: models.PermissionPatch{CanRead: boolRef(true)}},
		{Role: models.RoleTeacher, ModuleID: library, Patch: models.PermissionPatch{CanRead: boolRef(true)}},
	})
	require.Error(t, err)
	require.Equal(t, 1, applied)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "teacher/"+quizzes, storeErr.Key)

	listed, err := stack.permissions.ListForRole(ctx, models.RoleTeacher)
	require.NoError(t, err)
	require.True(t, listed[courses].CanRead)
	require.False(t, listed[library].CanRead)

	entries, err := stack.activity.Query(ctx, dto.ActivityQuery{ActionType: ActionPermissionsBulkSaved})
	require.NoError(t, err)
	require.Len(t, entries.Items, 1)
	entry := entries.Items[0]
	require.Equal(t, "teacher", entry.EntityID)
	require.Equal(t, true, entry.Metadata["partial"])

	cells, ok := entry.Metadata["edits"].([]interface{})
	require.True(t, ok)
	require.Len(t, cells, 1)
	cell, ok := cells[0].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, courses, cell["module_id"])
	require.Equal(t, map[string]interface{}{"can_read": true}, cell["fields"])
}

func TestRolePermissionServiceInvalidatesMatrixCache(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	library := stack.moduleID(t, "library")

	first, err := stack.resolver.ListRolePermissionMatrix(ctx)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, models.PermissionSet{}, first.Matrix[models.RoleStudent][library])

	cached, err := stack.resolver.ListRolePermissionMatrix(ctx)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)

	_, err = stack.permissions.SetRolePermission(ctx, superAdmin, models.RoleStudent, library, "can_read", true)
	require.NoError(t, err)
	require.False(t, stack.redis.Exists(matrixCacheKey))

	fresh, err := stack.resolver.ListRolePermissionMatrix(ctx)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.True(t, fresh.Matrix[models.RoleStudent][library].CanRead)
}

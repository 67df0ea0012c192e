package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/middleware"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
	filter  repository.ActivityLogFilter
	err     error
}

func (m *memoryActivityRepo) Create(_ context.Context, entry *models.ActivityLog) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(_ context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, error) {
	m.filter = filter
	result := make([]models.ActivityLog, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		result = append(result, m.entries[i])
	}
	return result, nil
}

type stubDirectory struct {
	entries map[string]DirectoryEntry
	err     error
}

func (s stubDirectory) Lookup(context.Context, []string) (map[string]DirectoryEntry, error) {
	return s.entries, s.err
}

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestActivityServiceRecordMasksSensitiveMetadata(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, nil, nil, "", zerolog.Nop())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		UserID:     "root",
		ActionType: ActionRoleAssigned,
		EntityType: "user",
		EntityID:   "u-1",
		Metadata: map[string]interface{}{
			"email":        "student@example.com",
			"access_token": "abc",
			"role":         "student",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["access_token"])
	require.Equal(t, "student", entry.Metadata["role"])
	require.Equal(t, "root", entry.UserID)
}

func TestActivityServiceRecordDefaultsActorToSystem(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, nil, nil, "", zerolog.Nop())

	entry, err := svc.Record(context.Background(), ActivityEntry{ActionType: "Role_Assigned", EntityType: "User"})
	require.NoError(t, err)
	require.Equal(t, "system", entry.UserID)
	require.Equal(t, "role_assigned", entry.ActionType)
	require.Equal(t, "user", entry.EntityType)

	_, err = svc.Record(context.Background(), ActivityEntry{EntityType: "user"})
	require.Error(t, err)
}

func TestActivityServiceRecordCarriesCorrelationID(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, nil, nil, "", zerolog.Nop())

	ctx := middleware.ContextWithCorrelation(context.Background(), "req-42")
	entry, err := svc.Record(ctx, ActivityEntry{UserID: "root", ActionType: ActionRoleAssigned, EntityType: "user", EntityID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, "req-42", entry.Metadata["correlation_id"])

	entry, err = svc.Record(context.Background(), ActivityEntry{UserID: "root", ActionType: ActionRoleAssigned, EntityType: "user", EntityID: "u-1"})
	require.NoError(t, err)
	require.NotContains(t, entry.Metadata, "correlation_id")
}

func TestActivityServicePublishesRecordedEntries(t *testing.T) {
	repo := &memoryActivityRepo{}
	publisher := &recordingPublisher{}
	svc := NewActivityService(repo, nil, publisher, "gema:access", zerolog.Nop())

	_, err := svc.Record(context.Background(), ActivityEntry{UserID: "root", ActionType: ActionCustomRoleCreated, EntityType: "role", EntityID: "mentor"})
	require.NoError(t, err)

	require.Equal(t, []string{"gema.access.activity"}, publisher.subjects)

	var payload dto.ActivityResponse
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &payload))
	require.Equal(t, "mentor", payload.EntityID)
}

func TestActivityServiceQueryClampsLimit(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, nil, nil, "", zerolog.Nop())

	result, err := svc.Query(context.Background(), dto.ActivityQuery{})
	require.NoError(t, err)
	require.Equal(t, 50, result.Limit)
	require.Equal(t, 50, repo.filter.Limit)

	result, err = svc.Query(context.Background(), dto.ActivityQuery{Limit: 5000, ActionType: " ROLE_ASSIGNED "})
	require.NoError(t, err)
	require.Equal(t, 200, result.Limit)
	require.Equal(t, "role_assigned", repo.filter.ActionType)
}

func TestActivityServiceQueryDecoratesNames(t *testing.T) {
	repo := &memoryActivityRepo{}
	directory := stubDirectory{entries: map[string]DirectoryEntry{
		"root": {DisplayName: "Rina Admin", AvatarURL: "https://cdn.test/rina.png"},
	}}
	svc := NewActivityService(repo, directory, nil, "", zerolog.Nop())

	for _, actor := range []string{"root", "ghost"} {
		_, err := svc.Record(context.Background(), ActivityEntry{UserID: actor, ActionType: ActionRoleAssigned, EntityType: "user"})
		require.NoError(t, err)
	}

	result, err := svc.Query(context.Background(), dto.ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, "ghost", result.Items[0].DisplayName)
	require.Equal(t, "Rina Admin", result.Items[1].DisplayName)
	require.Equal(t, "https://cdn.test/rina.png", result.Items[1].AvatarURL)
}

func TestActivityServiceQuerySurvivesDirectoryFailure(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, stubDirectory{err: errors.New("profiles unavailable")}, nil, "", zerolog.Nop())

	_, err := svc.Record(context.Background(), ActivityEntry{UserID: "root", ActionType: ActionRoleRevoked, EntityType: "user"})
	require.NoError(t, err)

	result, err := svc.Query(context.Background(), dto.ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, "root", result.Items[0].DisplayName)
}

func TestAuditFailureDoesNotAbortMutation(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	broken := NewActivityService(&memoryActivityRepo{err: errors.New("audit table missing")}, nil, nil, "", zerolog.Nop())
	svc := NewUserRoleService(repository.NewUserRoleRepository(stack.db), stack.registry, stack.cache, broken, UserRoleOptions{}, zerolog.Nop())

	require.NoError(t, svc.AssignRole(ctx, superAdmin, "u-1", models.RoleStudent))

	roles, err := svc.RolesOf(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, []models.Role{models.RoleStudent}, roles)
}

func TestEverySuccessfulMutationIsAuditedOnce(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	library := stack.moduleID(t, "library")

	successes := 0
	track := func(err error) {
		if err == nil {
			successes++
		}
	}

	_, err := stack.permissions.SetAll(ctx, superAdmin, models.RoleTeacher, library, true)
	track(err)
	_, err = stack.permissions.SetRolePermission(ctx, superAdmin, models.RoleStudent, library, "read", true)
	track(err)
	_, err = stack.permissions.ToggleField(ctx, superAdmin, models.RoleStudent, library, "update")
	track(err)
	_, err = stack.permissions.BulkSave(ctx, superAdmin, []PermissionEdit{
		{Role: models.RoleGuardian, ModuleID: library, Patch: models.PermissionPatch{CanRead: boolRef(true)}},
	})
	track(err)
	_, err = stack.customRoles.CreateCustomRole(ctx, superAdmin, "Mentor")
	track(err)
	track(stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleStudent))
	track(stack.userRoles.RevokeRole(ctx, admin, "u-1", models.RoleStudent))
	_, err = stack.userRoles.ToggleRole(ctx, admin, "u-1", models.RoleGuardian)
	track(err)

	// rejected calls
	_, err = stack.permissions.SetAll(ctx, admin, models.RoleTeacher, library, true)
	track(err)
	track(stack.userRoles.AssignRole(ctx, admin, "u-1", models.RoleAdmin))
	track(stack.userRoles.RevokeRole(ctx, admin, "u-1", models.RoleStudent))
	_, err = stack.customRoles.CreateCustomRole(ctx, superAdmin, "mentor")
	track(err)

	require.Equal(t, 8, successes)
	require.Equal(t, int64(successes), stack.activityCount(t))
}

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/database"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

var (
	superAdmin = Actor{ID: "root", Roles: []models.Role{models.RoleSuperAdmin}}
	admin      = Actor{ID: "office", Roles: []models.Role{models.RoleAdmin}}
	teacher    = Actor{ID: "t-1", Roles: []models.Role{models.RoleTeacher}}
)

type testStack struct {
	db          *gorm.DB
	redis       *miniredis.Miniredis
	cache       *MatrixCache
	activity    ActivityService
	registry    RegistryService
	permissions RolePermissionService
	userRoles   UserRoleService
	customRoles CustomRoleService
	resolver    PermissionResolver
	modules     map[string]models.Module
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:rbac_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := openTestDB(t)

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.Nop()
	userRoleRepo := repository.NewUserRoleRepository(db)
	permissionRepo := repository.NewRolePermissionRepository(db)

	cache := NewMatrixCache(client, time.Minute, logger)
	directory := NewUserDirectory(repository.NewProfileRepository(db), 16, time.Minute, logger)
	activity := NewActivityService(repository.NewActivityLogRepository(db), directory, nil, "", logger)
	registry := NewRegistryService(repository.NewModuleRepository(db), repository.NewCustomRoleRepository(db), userRoleRepo, logger)

	stack := &testStack{
		db:          db,
		redis:       server,
		cache:       cache,
		activity:    activity,
		registry:    registry,
		permissions: NewRolePermissionService(permissionRepo, registry, cache, activity, logger),
		userRoles:   NewUserRoleService(userRoleRepo, registry, cache, activity, UserRoleOptions{GuardLastSuperAdmin: true}, logger),
		customRoles: NewCustomRoleService(repository.NewCustomRoleRepository(db), cache, activity, logger),
		resolver:    NewPermissionResolver(userRoleRepo, permissionRepo, registry, directory, cache, logger),
		modules:     map[string]models.Module{},
	}

	_, err = registry.SeedModules(context.Background(), nil)
	require.NoError(t, err)

	modules, err := registry.ListModules(context.Background())
	require.NoError(t, err)
	for _, module := range modules {
		stack.modules[module.Name] = module
	}

	return stack
}

func (s *testStack) moduleID(t *testing.T, name string) string {
	t.Helper()
	module, ok := s.modules[name]
	require.True(t, ok, "module %s not seeded", name)
	return module.ID
}

func (s *testStack) grantRole(t *testing.T, userID string, role models.Role) {
	t.Helper()
	require.NoError(t, s.userRoles.AssignRole(context.Background(), superAdmin, userID, role))
}

func (s *testStack) activityCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.db.Model(&models.ActivityLog{}).Count(&count).Error)
	return count
}

func boolRef(v bool) *bool {
	return &v
}

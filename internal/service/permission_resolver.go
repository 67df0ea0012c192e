package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/observability"
	"github.com/noah-isme/gema-access/internal/repository"
)

// UserMatrixFilter narrows the user × module matrix. Empty slices match everything.
type UserMatrixFilter struct {
	ModuleIDs []string
	UserIDs   []string
}

// PermissionResolver turns role membership into effective permissions.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID, moduleID string) models.PermissionSet
	EffectivePermissionsAll(ctx context.Context, userID string) map[string]models.PermissionSet
	Authorize(ctx context.Context, userID, moduleRef, action string) bool
	ListRolePermissionMatrix(ctx context.Context) (dto.RoleMatrixResponse, error)
	ListUserMatrix(ctx context.Context, filter UserMatrixFilter) (dto.UserMatrixResponse, error)
}

type permissionResolver struct {
	userRoles   repository.UserRoleRepository
	permissions repository.RolePermissionRepository
	registry    RegistryService
	directory   UserDirectory
	cache       *MatrixCache
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewPermissionResolver constructs the resolver. directory and cache may be nil.
func NewPermissionResolver(userRoles repository.UserRoleRepository, permissions repository.RolePermissionRepository, registry RegistryService, directory UserDirectory, cache *MatrixCache, logger zerolog.Logger) PermissionResolver {
	return &permissionResolver{
		userRoles:   userRoles,
		permissions: permissions,
		registry:    registry,
		directory:   directory,
		cache:       cache,
		tracer:      otel.Tracer("github.com/noah-isme/gema-access/internal/service/resolver"),
		logger:      logger.With().Str("component", "permission_resolver").Logger(),
	}
}

// EffectivePermissions is the OR over every role the user holds. Store failures
// resolve to an empty set.
func (r *permissionResolver) EffectivePermissions(ctx context.Context, userID, moduleID string) models.PermissionSet {
	defer observeResolver("effective", time.Now())

	all := r.effective(ctx, userID, []string{strings.TrimSpace(moduleID)})
	return all[strings.TrimSpace(moduleID)]
}

func (r *permissionResolver) EffectivePermissionsAll(ctx context.Context, userID string) map[string]models.PermissionSet {
	defer observeResolver("effective_all", time.Now())

	return r.effective(ctx, userID, nil)
}

func (r *permissionResolver) effective(ctx context.Context, userID string, moduleIDs []string) map[string]models.PermissionSet {
	result := map[string]models.PermissionSet{}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return result
	}

	spanCtx, span := r.tracer.Start(ctx, "resolver.effective", trace.WithAttributes(attribute.String("rbac.user_id", userID)))
	defer span.End()

	roles, err := r.userRoles.RolesOf(spanCtx, userID)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load user roles")
		return result
	}
	if len(roles) == 0 {
		return result
	}

	rows, err := r.permissions.List(spanCtx, repository.RolePermissionFilter{Roles: roles, ModuleIDs: moduleIDs})
	if err != nil {
		span.RecordError(err)
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load role permissions")
		return map[string]models.PermissionSet{}
	}

	for _, row := range rows {
		result[row.ModuleID] = result[row.ModuleID].Union(row.Set())
	}
	return result
}

// Authorize reports whether the user may perform action on the module. The module
// may be referenced by id or name. Anything unresolvable is denied.
func (r *permissionResolver) Authorize(ctx context.Context, userID, moduleRef, action string) bool {
	defer observeResolver("authorize", time.Now())

	parsed, ok := models.ParseAction(action)
	if !ok {
		observability.AuthorizationDecisions().WithLabelValues("unknown", "unknown", "deny").Inc()
		return false
	}

	module, err := r.registry.ResolveModule(ctx, moduleRef)
	if err != nil {
		observability.AuthorizationDecisions().WithLabelValues("unknown", string(parsed), "deny").Inc()
		return false
	}

	set := r.effective(ctx, userID, []string{module.ID})[module.ID]
	allowed := set.Get(parsed)

	result := "deny"
	if allowed {
		result = "allow"
	}
	observability.AuthorizationDecisions().WithLabelValues(module.Name, string(parsed), result).Inc()
	return allowed
}

// ListRolePermissionMatrix renders every known role against every module. Missing
// rows appear as empty sets.
func (r *permissionResolver) ListRolePermissionMatrix(ctx context.Context) (dto.RoleMatrixResponse, error) {
	defer observeResolver("role_matrix", time.Now())

	if cached, ok := r.cache.get(ctx); ok {
		cached.CacheHit = true
		return cached, nil
	}

	spanCtx, span := r.tracer.Start(ctx, "resolver.role_matrix")
	defer span.End()

	var (
		roles   []models.Role
		modules []models.Module
		rows    []models.RoleModulePermission
	)

	group, groupCtx := errgroup.WithContext(spanCtx)
	group.Go(func() error {
		var err error
		roles, err = r.registry.KnownRoles(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		modules, err = r.registry.ListModules(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		rows, err = r.permissions.List(groupCtx, repository.RolePermissionFilter{})
		return err
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return dto.RoleMatrixResponse{}, storeError("matrix", "roles", err)
	}

	matrix := make(map[models.Role]map[string]models.PermissionSet, len(roles))
	for _, role := range roles {
		cells := make(map[string]models.PermissionSet, len(modules))
		for _, module := range modules {
			cells[module.ID] = models.PermissionSet{}
		}
		matrix[role] = cells
	}
	for _, row := range rows {
		cells, ok := matrix[row.Role]
		if !ok {
			continue
		}
		if _, known := cells[row.ModuleID]; known {
			cells[row.ModuleID] = row.Set()
		}
	}

	result := dto.RoleMatrixResponse{Roles: roles, Modules: modules, Matrix: matrix}
	r.cache.set(ctx, result)
	return result, nil
}

// ListUserMatrix computes effective permissions for many users from two batch loads.
func (r *permissionResolver) ListUserMatrix(ctx context.Context, filter UserMatrixFilter) (dto.UserMatrixResponse, error) {
	defer observeResolver("user_matrix", time.Now())

	spanCtx, span := r.tracer.Start(ctx, "resolver.user_matrix", trace.WithAttributes(
		attribute.Int("rbac.filter.users", len(filter.UserIDs)),
		attribute.Int("rbac.filter.modules", len(filter.ModuleIDs)),
	))
	defer span.End()

	var (
		assignments []models.UserRole
		rows        []models.RoleModulePermission
		modules     []models.Module
	)

	group, groupCtx := errgroup.WithContext(spanCtx)
	group.Go(func() error {
		var err error
		assignments, err = r.userRoles.ListAssignments(groupCtx, filter.UserIDs)
		return err
	})
	group.Go(func() error {
		var err error
		rows, err = r.permissions.List(groupCtx, repository.RolePermissionFilter{ModuleIDs: filter.ModuleIDs})
		return err
	})
	group.Go(func() error {
		var err error
		modules, err = r.registry.ListModules(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return dto.UserMatrixResponse{}, storeError("matrix", "users", err)
	}

	moduleIDs := selectModules(modules, filter.ModuleIDs)

	byRole := make(map[models.Role][]models.RoleModulePermission)
	for _, row := range rows {
		byRole[row.Role] = append(byRole[row.Role], row)
	}

	rolesByUser := make(map[string][]models.Role)
	order := make([]string, 0)
	for _, userID := range filter.UserIDs {
		if _, ok := rolesByUser[userID]; !ok {
			rolesByUser[userID] = []models.Role{}
			order = append(order, userID)
		}
	}
	for _, assignment := range assignments {
		if _, ok := rolesByUser[assignment.UserID]; !ok {
			order = append(order, assignment.UserID)
		}
		rolesByUser[assignment.UserID] = append(rolesByUser[assignment.UserID], assignment.Role)
	}
	sort.Strings(order)

	names := r.displayNames(spanCtx, order)

	items := make([]dto.UserMatrixRow, 0, len(order))
	for _, userID := range order {
		roles := rolesByUser[userID]
		permissions := make(map[string]models.PermissionSet, len(moduleIDs))
		for _, moduleID := range moduleIDs {
			permissions[moduleID] = models.PermissionSet{}
		}
		for _, role := range roles {
			for _, row := range byRole[role] {
				if current, ok := permissions[row.ModuleID]; ok {
					permissions[row.ModuleID] = current.Union(row.Set())
				}
			}
		}

		name := userID
		if entry, ok := names[userID]; ok && entry.DisplayName != "" {
			name = entry.DisplayName
		}
		items = append(items, dto.UserMatrixRow{
			UserID:      userID,
			DisplayName: name,
			Roles:       roles,
			Permissions: permissions,
		})
	}

	return dto.UserMatrixResponse{Items: items}, nil
}

func (r *permissionResolver) displayNames(ctx context.Context, ids []string) map[string]DirectoryEntry {
	if r.directory == nil || len(ids) == 0 {
		return nil
	}
	names, err := r.directory.Lookup(ctx, ids)
	if err != nil {
		r.logger.Warn().Err(err).Msg("user directory lookup failed")
	}
	return names
}

func selectModules(modules []models.Module, filter []string) []string {
	if len(filter) == 0 {
		ids := make([]string, 0, len(modules))
		for _, module := range modules {
			ids = append(ids, module.ID)
		}
		return ids
	}

	known := make(map[string]struct{}, len(modules))
	for _, module := range modules {
		known[module.ID] = struct{}{}
	}
	ids := make([]string, 0, len(filter))
	for _, id := range filter {
		if _, ok := known[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func observeResolver(query string, start time.Time) {
	observability.ResolverLatency().WithLabelValues(query).Observe(time.Since(start).Seconds())
}

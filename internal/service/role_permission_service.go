package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

// PermissionEdit is one cell change of a bulk save.
type PermissionEdit struct {
	Role     models.Role
	ModuleID string
	Patch    models.PermissionPatch
}

// RolePermissionService manages the (role, module) permission grid.
type RolePermissionService interface {
	ToggleField(ctx context.Context, actor Actor, role models.Role, moduleID string, field string) (models.PermissionSet, error)
	SetRolePermission(ctx context.Context, actor Actor, role models.Role, moduleID string, field string, value bool) (models.PermissionSet, error)
	SetAll(ctx context.Context, actor Actor, role models.Role, moduleID string, grant bool) (models.PermissionSet, error)
	ListForRole(ctx context.Context, role models.Role) (map[string]models.PermissionSet, error)
	BulkSave(ctx context.Context, actor Actor, edits []PermissionEdit) (int, error)
}

type rolePermissionService struct {
	repo     repository.RolePermissionRepository
	registry RegistryService
	cache    *MatrixCache
	activity ActivityRecorder
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewRolePermissionService constructs the role permission service.
func NewRolePermissionService(repo repository.RolePermissionRepository, registry RegistryService, cache *MatrixCache, activity ActivityRecorder, logger zerolog.Logger) RolePermissionService {
	return &rolePermissionService{
		repo:     repo,
		registry: registry,
		cache:    cache,
		activity: activity,
		tracer:   otel.Tracer("github.com/noah-isme/gema-access/internal/service/role_permission"),
		logger:   logger.With().Str("component", "role_permission_service").Logger(),
	}
}

func (s *rolePermissionService) ToggleField(ctx context.Context, actor Actor, role models.Role, moduleID string, field string) (result models.PermissionSet, err error) {
	defer func() { recordMutation(ActionPermissionToggled, err) }()

	action, ok := models.ParseAction(field)
	if !ok {
		return models.PermissionSet{}, validationError("unknown permission field %q", field)
	}
	module, err := s.prepare(ctx, actor, role, moduleID)
	if err != nil {
		return models.PermissionSet{}, err
	}

	spanCtx, span := s.startSpan(ctx, "role_permissions.toggle", role, module.ID)
	defer span.End()

	result, err = s.repo.Toggle(spanCtx, role, module.ID, action)
	if err != nil {
		span.RecordError(err)
		return models.PermissionSet{}, storeError("toggle", cellKey(role, module.ID), err)
	}

	s.afterWrite(spanCtx, actor, role, ActionPermissionToggled, map[string]interface{}{
		"module_id": module.ID,
		"field":     action.Column(),
		"value":     result.Get(action),
	})
	return result, nil
}

func (s *rolePermissionService) SetRolePermission(ctx context.Context, actor Actor, role models.Role, moduleID string, field string, value bool) (result models.PermissionSet, err error) {
	defer func() { recordMutation(ActionPermissionUpdated, err) }()

	action, ok := models.ParseAction(field)
	if !ok {
		return models.PermissionSet{}, validationError("unknown permission field %q", field)
	}
	module, err := s.prepare(ctx, actor, role, moduleID)
	if err != nil {
		return models.PermissionSet{}, err
	}

	spanCtx, span := s.startSpan(ctx, "role_permissions.set", role, module.ID)
	defer span.End()

	result, err = s.repo.UpsertFields(spanCtx, role, module.ID, map[models.Action]bool{action: value})
	if err != nil {
		span.RecordError(err)
		return models.PermissionSet{}, storeError("set", cellKey(role, module.ID), err)
	}

	s.afterWrite(spanCtx, actor, role, ActionPermissionUpdated, map[string]interface{}{
		"module_id": module.ID,
		"field":     action.Column(),
		"value":     value,
	})
	return result, nil
}

func (s *rolePermissionService) SetAll(ctx context.Context, actor Actor, role models.Role, moduleID string, grant bool) (result models.PermissionSet, err error) {
	defer func() { recordMutation(ActionPermissionsSetAll, err) }()

	module, err := s.prepare(ctx, actor, role, moduleID)
	if err != nil {
		return models.PermissionSet{}, err
	}

	spanCtx, span := s.startSpan(ctx, "role_permissions.set_all", role, module.ID)
	defer span.End()

	target := models.PermissionSet{}
	if grant {
		target = models.FullPermissionSet()
	}

	result, err = s.repo.UpsertFields(spanCtx, role, module.ID, models.PatchFromSet(target).Fields())
	if err != nil {
		span.RecordError(err)
		return models.PermissionSet{}, storeError("set_all", cellKey(role, module.ID), err)
	}

	s.afterWrite(spanCtx, actor, role, ActionPermissionsSetAll, map[string]interface{}{
		"module_id": module.ID,
		"grant":     grant,
	})
	return result, nil
}

func (s *rolePermissionService) ListForRole(ctx context.Context, role models.Role) (map[string]models.PermissionSet, error) {
	if err := s.ensureRole(ctx, role); err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx, repository.RolePermissionFilter{Roles: []models.Role{role}})
	if err != nil {
		return nil, storeError("list", string(role), err)
	}

	result := make(map[string]models.PermissionSet, len(rows))
	for _, row := range rows {
		result[row.ModuleID] = row.Set()
	}
	return result, nil
}

// BulkSave validates and authorizes every edit before the first write, then applies
// the edits in order. A store failure stops the loop; earlier edits stay committed
// and are audited as a partial batch.
func (s *rolePermissionService) BulkSave(ctx context.Context, actor Actor, edits []PermissionEdit) (applied int, err error) {
	defer func() { recordMutation(ActionPermissionsBulkSaved, err) }()

	if len(edits) == 0 {
		return 0, validationError("at least one edit is required")
	}

	resolved := make([]PermissionEdit, 0, len(edits))
	for i, edit := range edits {
		if edit.Patch.IsEmpty() {
			return 0, validationError("edit %d touches no permission field", i)
		}
		module, err := s.prepare(ctx, actor, edit.Role, edit.ModuleID)
		if err != nil {
			return 0, fmt.Errorf("edit %d: %w", i, err)
		}
		edit.ModuleID = module.ID
		resolved = append(resolved, edit)
	}

	spanCtx, span := s.tracer.Start(ctx, "role_permissions.bulk_save", trace.WithAttributes(attribute.Int("rbac.edits", len(resolved))))
	defer span.End()

	for _, edit := range resolved {
		if _, err := s.repo.UpsertFields(spanCtx, edit.Role, edit.ModuleID, edit.Patch.Fields()); err != nil {
			span.RecordError(err)
			s.logger.Error().Err(err).Str("role", edit.Role.String()).Str("module_id", edit.ModuleID).Int("applied", applied).Msg("bulk save aborted")
			if applied > 0 {
				s.cache.Invalidate(spanCtx)
				s.auditBulkSave(spanCtx, actor, resolved[:applied], true)
			}
			return applied, storeError("bulk_save", cellKey(edit.Role, edit.ModuleID), err)
		}
		applied++
	}

	s.cache.Invalidate(spanCtx)
	s.auditBulkSave(spanCtx, actor, resolved, false)
	return applied, nil
}

// auditBulkSave writes one entry per touched role describing each committed cell.
// partial marks a batch that stopped on a store failure.
func (s *rolePermissionService) auditBulkSave(ctx context.Context, actor Actor, committed []PermissionEdit, partial bool) {
	order := make([]models.Role, 0)
	cells := make(map[models.Role][]map[string]interface{})
	for _, edit := range committed {
		if _, seen := cells[edit.Role]; !seen {
			order = append(order, edit.Role)
		}
		fields := make(map[string]interface{})
		for action, value := range edit.Patch.Fields() {
			fields[action.Column()] = value
		}
		cells[edit.Role] = append(cells[edit.Role], map[string]interface{}{
			"module_id": edit.ModuleID,
			"fields":    fields,
		})
	}

	for _, role := range order {
		audit(ctx, s.activity, ActivityEntry{
			UserID:     actor.ID,
			ActionType: ActionPermissionsBulkSaved,
			EntityType: "role",
			EntityID:   role.String(),
			Metadata: map[string]interface{}{
				"edits":   cells[role],
				"partial": partial,
			},
		})
	}
}

// prepare runs the shared pre-write checks and resolves the module.
func (s *rolePermissionService) prepare(ctx context.Context, actor Actor, role models.Role, moduleRef string) (models.Module, error) {
	if err := s.ensureRole(ctx, role); err != nil {
		return models.Module{}, err
	}
	if err := authorize(actor, role, OpEditPermission); err != nil {
		return models.Module{}, err
	}
	return s.registry.ResolveModule(ctx, moduleRef)
}

func (s *rolePermissionService) ensureRole(ctx context.Context, role models.Role) error {
	if role == "" {
		return validationError("role is required")
	}
	exists, err := s.registry.RoleExists(ctx, role)
	if err != nil {
		return err
	}
	if !exists {
		return validationError("unknown role %q", role)
	}
	return nil
}

func (s *rolePermissionService) afterWrite(ctx context.Context, actor Actor, role models.Role, actionType string, metadata map[string]interface{}) {
	s.cache.Invalidate(ctx)
	audit(ctx, s.activity, ActivityEntry{
		UserID:     actor.ID,
		ActionType: actionType,
		EntityType: "role",
		EntityID:   role.String(),
		Metadata:   metadata,
	})
}

func (s *rolePermissionService) startSpan(ctx context.Context, name string, role models.Role, moduleID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("rbac.role", role.String()),
		attribute.String("rbac.module_id", moduleID),
	))
}

func cellKey(role models.Role, moduleID string) string {
	return role.String() + "/" + moduleID
}

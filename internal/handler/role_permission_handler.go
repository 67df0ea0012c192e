package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/service"
	"github.com/noah-isme/gema-access/internal/utils"
)

// RolePermissionHandler exposes the role × module permission grid.
type RolePermissionHandler struct {
	permissions service.RolePermissionService
	resolver    service.PermissionResolver
	registry    service.RegistryService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewRolePermissionHandler constructs the handler.
func NewRolePermissionHandler(permissions service.RolePermissionService, resolver service.PermissionResolver, registry service.RegistryService, validator *validator.Validate, logger zerolog.Logger) *RolePermissionHandler {
	return &RolePermissionHandler{
		permissions: permissions,
		resolver:    resolver,
		registry:    registry,
		validator:   validator,
		logger:      logger.With().Str("component", "role_permission_handler").Logger(),
	}
}

// Register attaches permission grid routes to the rbac group. mutate guards every write.
func (h *RolePermissionHandler) Register(router fiber.Router, mutate ...fiber.Handler) {
	router.Get("/roles/matrix", h.matrix)
	router.Get("/roles/:role/permissions", h.listForRole)
	router.Put("/roles/:role/permissions/:module", chain(mutate, h.setAll)...)
	router.Put("/roles/:role/permissions/:module/:field", chain(mutate, h.setField)...)
	router.Post("/roles/:role/permissions/:module/:field/toggle", chain(mutate, h.toggleField)...)
	router.Post("/permissions/bulk", chain(mutate, h.bulkSave)...)
}

func (h *RolePermissionHandler) matrix(c *fiber.Ctx) error {
	matrix, err := h.resolver.ListRolePermissionMatrix(c.UserContext())
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to load permission matrix")
	}
	return utils.SendSuccess(c, "permission matrix retrieved", matrix)
}

func (h *RolePermissionHandler) listForRole(c *fiber.Ctx) error {
	role := roleParam(c)
	permissions, err := h.permissions.ListForRole(c.UserContext(), role)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list role permissions")
	}
	return utils.SendSuccess(c, "role permissions retrieved", dto.RolePermissionsResponse{
		Role:        role,
		Permissions: permissions,
	})
}

func (h *RolePermissionHandler) setAll(c *fiber.Ctx) error {
	var payload dto.SetAllRequest
	if ok, err := bindAndValidate(c, h.validator, &payload); !ok {
		return err
	}

	role := roleParam(c)
	set, err := h.permissions.SetAll(c.UserContext(), actorFromContext(c), role, c.Params("module"), *payload.Grant)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to update permissions")
	}
	return utils.SendSuccess(c, "permissions updated", dto.PermissionCellResponse{
		Role:        role,
		ModuleID:    h.moduleID(c),
		Permissions: set,
	})
}

func (h *RolePermissionHandler) setField(c *fiber.Ctx) error {
	var payload dto.SetPermissionRequest
	if ok, err := bindAndValidate(c, h.validator, &payload); !ok {
		return err
	}

	role := roleParam(c)
	set, err := h.permissions.SetRolePermission(c.UserContext(), actorFromContext(c), role, c.Params("module"), c.Params("field"), *payload.Value)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to update permission")
	}
	return utils.SendSuccess(c, "permission updated", dto.PermissionCellResponse{
		Role:        role,
		ModuleID:    h.moduleID(c),
		Permissions: set,
	})
}

func (h *RolePermissionHandler) toggleField(c *fiber.Ctx) error {
	role := roleParam(c)
	set, err := h.permissions.ToggleField(c.UserContext(), actorFromContext(c), role, c.Params("module"), c.Params("field"))
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to toggle permission")
	}
	return utils.SendSuccess(c, "permission toggled", dto.PermissionCellResponse{
		Role:        role,
		ModuleID:    h.moduleID(c),
		Permissions: set,
	})
}

func (h *RolePermissionHandler) bulkSave(c *fiber.Ctx) error {
	var payload dto.BulkSaveRequest
	if ok, err := bindAndValidate(c, h.validator, &payload); !ok {
		return err
	}

	edits := make([]service.PermissionEdit, 0, len(payload.Edits))
	for _, edit := range payload.Edits {
		edits = append(edits, service.PermissionEdit{
			Role:     models.ParseRole(edit.Role),
			ModuleID: edit.ModuleID,
			Patch:    edit.Permissions,
		})
	}

	applied, err := h.permissions.BulkSave(c.UserContext(), actorFromContext(c), edits)
	var storeErr *service.StoreError
	if errors.As(err, &storeErr) {
		requestLogger(h.logger, c).Error().Err(err).Str("key", storeErr.Key).Int("applied", applied).Msg("failed to save permissions")
		return utils.Fail(c, fiber.StatusInternalServerError, "failed to save permissions", fiber.Map{
			"key":     storeErr.Key,
			"applied": applied,
		})
	}
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to save permissions")
	}
	return utils.SendSuccess(c, "permissions saved", dto.BulkSaveResponse{Applied: applied})
}

// moduleID reports the catalog id behind the :module parameter, which may be a name.
func (h *RolePermissionHandler) moduleID(c *fiber.Ctx) string {
	ref := c.Params("module")
	module, err := h.registry.ResolveModule(c.UserContext(), ref)
	if err != nil {
		return ref
	}
	return module.ID
}

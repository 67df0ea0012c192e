package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/service"
	"github.com/noah-isme/gema-access/internal/utils"
)

// UserRoleHandler exposes role membership and the resolved permissions of users.
type UserRoleHandler struct {
	userRoles service.UserRoleService
	resolver  service.PermissionResolver
	registry  service.RegistryService
	legacy    service.LegacyPermissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserRoleHandler constructs the handler.
func NewUserRoleHandler(userRoles service.UserRoleService, resolver service.PermissionResolver, registry service.RegistryService, legacy service.LegacyPermissionService, validator *validator.Validate, logger zerolog.Logger) *UserRoleHandler {
	return &UserRoleHandler{
		userRoles: userRoles,
		resolver:  resolver,
		registry:  registry,
		legacy:    legacy,
		validator: validator,
		logger:    logger.With().Str("component", "user_role_handler").Logger(),
	}
}

// Register attaches user routes to the rbac group. mutate guards every write.
func (h *UserRoleHandler) Register(router fiber.Router, mutate ...fiber.Handler) {
	router.Get("/users/matrix", h.matrix)
	router.Get("/users/:id/roles", h.roles)
	router.Post("/users/:id/roles", chain(mutate, h.assign)...)
	router.Delete("/users/:id/roles/:role", chain(mutate, h.revoke)...)
	router.Post("/users/:id/roles/:role/toggle", chain(mutate, h.toggle)...)
	router.Get("/users/:id/permissions", h.permissions)
	router.Get("/users/:id/permissions/:module", h.modulePermissions)
	router.Get("/users/:id/legacy-permissions", h.legacyPermissions)
}

func (h *UserRoleHandler) matrix(c *fiber.Ctx) error {
	filter := service.UserMatrixFilter{
		ModuleIDs: splitAndTrim(c.Query("module_id")),
		UserIDs:   splitAndTrim(c.Query("user_id")),
	}
	matrix, err := h.resolver.ListUserMatrix(c.UserContext(), filter)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to load user matrix")
	}
	return utils.SendSuccess(c, "user matrix retrieved", matrix)
}

func (h *UserRoleHandler) roles(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	roles, err := h.userRoles.RolesOf(c.UserContext(), userID)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to load user roles")
	}
	return utils.SendSuccess(c, "user roles retrieved", dto.UserRolesResponse{
		UserID:      userID,
		Roles:       roles,
		PrimaryRole: models.PrimaryRole(roles),
	})
}

func (h *UserRoleHandler) assign(c *fiber.Ctx) error {
	var payload dto.AssignRoleRequest
	if ok, err := bindAndValidate(c, h.validator, &payload); !ok {
		return err
	}

	userID := strings.TrimSpace(c.Params("id"))
	if err := h.userRoles.AssignRole(c.UserContext(), actorFromContext(c), userID, models.ParseRole(payload.Role)); err != nil {
		return writeServiceError(c, h.logger, err, "failed to assign role")
	}
	return h.respondWithRoles(c, fiber.StatusCreated, userID, "role assigned")
}

func (h *UserRoleHandler) revoke(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	if err := h.userRoles.RevokeRole(c.UserContext(), actorFromContext(c), userID, roleParam(c)); err != nil {
		return writeServiceError(c, h.logger, err, "failed to revoke role")
	}
	return h.respondWithRoles(c, fiber.StatusOK, userID, "role revoked")
}

func (h *UserRoleHandler) toggle(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	held, err := h.userRoles.ToggleRole(c.UserContext(), actorFromContext(c), userID, roleParam(c))
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to toggle role")
	}

	message := "role revoked"
	if held {
		message = "role assigned"
	}
	return h.respondWithRoles(c, fiber.StatusOK, userID, message)
}

func (h *UserRoleHandler) respondWithRoles(c *fiber.Ctx, status int, userID, message string) error {
	roles, err := h.userRoles.RolesOf(c.UserContext(), userID)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to load user roles")
	}
	return utils.SendSuccessWithStatus(c, status, message, dto.UserRolesResponse{
		UserID:      userID,
		Roles:       roles,
		PrimaryRole: models.PrimaryRole(roles),
	})
}

func (h *UserRoleHandler) permissions(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	return utils.SendSuccess(c, "effective permissions retrieved", dto.EffectivePermissionsResponse{
		UserID:      userID,
		Permissions: h.resolver.EffectivePermissionsAll(c.UserContext(), userID),
	})
}

func (h *UserRoleHandler) modulePermissions(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	module, err := h.registry.ResolveModule(c.UserContext(), c.Params("module"))
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to resolve module")
	}
	return utils.SendSuccess(c, "effective permissions retrieved", dto.EffectivePermissionResponse{
		UserID:      userID,
		ModuleID:    module.ID,
		Permissions: h.resolver.EffectivePermissions(c.UserContext(), userID, module.ID),
	})
}

func (h *UserRoleHandler) legacyPermissions(c *fiber.Ctx) error {
	items, err := h.legacy.ListForUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to load legacy permissions")
	}
	return utils.SendSuccess(c, "legacy permissions retrieved", items)
}

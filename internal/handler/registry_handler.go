package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/service"
	"github.com/noah-isme/gema-access/internal/utils"
)

// RegistryHandler exposes the module catalog and role registry.
type RegistryHandler struct {
	registry    service.RegistryService
	customRoles service.CustomRoleService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewRegistryHandler constructs the handler.
func NewRegistryHandler(registry service.RegistryService, customRoles service.CustomRoleService, validator *validator.Validate, logger zerolog.Logger) *RegistryHandler {
	return &RegistryHandler{
		registry:    registry,
		customRoles: customRoles,
		validator:   validator,
		logger:      logger.With().Str("component", "registry_handler").Logger(),
	}
}

// Register attaches registry routes to the rbac group.
func (h *RegistryHandler) Register(router fiber.Router, mutate ...fiber.Handler) {
	router.Get("/modules", h.listModules)
	router.Get("/roles", h.listRoles)
	router.Post("/roles", chain(mutate, h.createRole)...)
}

func (h *RegistryHandler) listModules(c *fiber.Ctx) error {
	modules, err := h.registry.ListModules(c.UserContext())
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list modules")
	}
	return utils.SendSuccess(c, "modules retrieved", modules)
}

func (h *RegistryHandler) listRoles(c *fiber.Ctx) error {
	roles, err := h.registry.ListRoles(c.UserContext())
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list roles")
	}
	return utils.SendSuccess(c, "roles retrieved", roles)
}

func (h *RegistryHandler) createRole(c *fiber.Ctx) error {
	var payload dto.CreateRoleRequest
	if ok, err := bindAndValidate(c, h.validator, &payload); !ok {
		return err
	}

	actor := actorFromContext(c)
	role, err := h.customRoles.CreateCustomRole(c.UserContext(), actor, payload.Name)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to create role")
	}

	requestLogger(h.logger, c).Info().Str("actor_id", actor.ID).Str("role", role.String()).Msg("custom role created")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "role created", dto.RoleSummary{
		Role:        role,
		DisplayName: payload.Name,
		CreatedBy:   actor.ID,
	})
}

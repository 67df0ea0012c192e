package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/service"
	"github.com/noah-isme/gema-access/internal/utils"
)

// ActivityHandler exposes the access-control audit trail.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the rbac group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/activity", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	query := dto.ActivityQuery{
		Limit:      limit,
		UserID:     c.Query("user_id"),
		ActionType: c.Query("action_type"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
	}

	response, err := h.service.Query(c.UserContext(), query)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list activity logs")
	}

	return utils.OK(c, response.Items, "activity logs", fiber.Map{"limit": response.Limit, "count": len(response.Items)})
}

package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/middleware"
	"github.com/noah-isme/gema-access/internal/service"
	"github.com/noah-isme/gema-access/internal/utils"
)

// AccessHandler answers authorization queries from other platform services.
type AccessHandler struct {
	resolver service.PermissionResolver
	logger   zerolog.Logger
}

// NewAccessHandler constructs the handler.
func NewAccessHandler(resolver service.PermissionResolver, logger zerolog.Logger) *AccessHandler {
	return &AccessHandler{
		resolver: resolver,
		logger:   logger.With().Str("component", "access_handler").Logger(),
	}
}

// Register attaches the authorize route. Any authenticated caller may ask.
func (h *AccessHandler) Register(router fiber.Router) {
	router.Get("/authorize", middleware.WithAuth(h.authorize, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
}

func (h *AccessHandler) authorize(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		userID = middleware.UserIDFromContext(c)
	}
	module := strings.TrimSpace(c.Query("module"))
	action := strings.TrimSpace(c.Query("action"))
	if module == "" || action == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "module and action are required")
	}

	allowed := h.resolver.Authorize(c.UserContext(), userID, module, action)
	requestLogger(h.logger, c).Debug().
		Str("user_id", userID).
		Str("module", module).
		Str("action", action).
		Bool("allowed", allowed).
		Msg("authorization evaluated")

	return utils.SendSuccess(c, "authorization evaluated", dto.AuthorizeResponse{
		UserID:  userID,
		Module:  module,
		Action:  action,
		Allowed: allowed,
	})
}

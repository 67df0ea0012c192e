package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/middleware"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/service"
	"github.com/noah-isme/gema-access/internal/utils"
)

func splitAndTrim(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:    middleware.UserIDFromContext(c),
		Roles: middleware.RolesFromContext(c),
	}
}

func roleParam(c *fiber.Ctx) models.Role {
	return models.ParseRole(c.Params("role"))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Namespace()] = fieldErr.Tag()
	}
	return details
}

// writeServiceError maps service errors to HTTP statuses.
func writeServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	var storeErr *service.StoreError
	switch {
	case errors.Is(err, service.ErrAuthorization):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateRole):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &storeErr):
		requestLogger(logger, c).Error().Err(err).Str("op", storeErr.Op).Str("key", storeErr.Key).Msg(fallback)
		return utils.Fail(c, fiber.StatusInternalServerError, fallback, fiber.Map{"key": storeErr.Key})
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}

// bindAndValidate parses the JSON body into payload and runs struct validation.
// When ok is false the error response has already been written.
func bindAndValidate(c *fiber.Ctx, validate *validator.Validate, payload interface{}) (ok bool, err error) {
	if err := c.BodyParser(payload); err != nil {
		return false, utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if validate == nil {
		return true, nil
	}
	if err := validate.Struct(payload); err != nil {
		if isValidationError(err) {
			return false, utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
		}
		return false, utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return true, nil
}

// chain appends the route handler to a copy of the guard list.
func chain(guards []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	return append(handlers, handler)
}

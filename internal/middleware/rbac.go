package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/utils"
)

// Authorizer answers whether a user may perform an action on a module.
type Authorizer interface {
	Authorize(ctx context.Context, userID, moduleRef, action string) bool
}

// RequireRole ensures that the authenticated user holds at least one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		normalized := models.ParseRole(role)
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		for _, role := range RolesFromContext(c) {
			if _, ok := allowed[role]; ok {
				return c.Next()
			}
		}
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}
}

// RequirePermission guards a route with the resolved permission of the caller on
// the module. Missing identity or any resolution failure denies the request.
// The console routes here guard by role; LMS services mounting this package use
// RequirePermission with the PermissionResolver to gate their own module routes.
func RequirePermission(authorizer Authorizer, module string, action models.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserIDFromContext(c)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if authorizer == nil || !authorizer.Authorize(c.UserContext(), userID, module, string(action)) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}

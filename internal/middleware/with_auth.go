package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny        = "any"
	AuthRoleAdmin      = "admin"
	AuthRoleSuperAdmin = "super_admin"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role      string
	Anonymous bool
}

// WithAuth wraps a handler with basic authentication/authorization guards. The
// admin role is also satisfied by super_admin.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	anonymous := opts.Anonymous && role == AuthRoleAny

	return func(c *fiber.Ctx) error {
		userID := UserIDFromContext(c)
		if userID == "" {
			if anonymous {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		roles := RolesFromContext(c)
		switch role {
		case AuthRoleAny:
		case AuthRoleAdmin:
			if !models.HasRole(roles, models.RoleAdmin) && !models.HasRole(roles, models.RoleSuperAdmin) {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		default:
			if !models.HasRole(roles, models.Role(role)) {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}

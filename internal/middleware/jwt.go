package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	LocalUserRole  = "user_role"
)

// JWTProtected returns a middleware that validates JWT bearer tokens issued by the
// identity provider. The subject becomes user_id and the asserted roles become
// user_roles, with the highest-priority role stored as user_role.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractUserIDFromClaims(claims)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}
		roles := extractRolesFromClaims(claims)

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		if primary := models.PrimaryRole(roles); primary != "" {
			c.Locals(LocalUserRole, primary.String())
		}

		return c.Next()
	}
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized := normalizeUserID(value); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return strconv.FormatUint(uint64(v), 10)
	case int:
		if v < 0 {
			return ""
		}
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func extractRolesFromClaims(claims jwt.MapClaims) []models.Role {
	seen := make(map[models.Role]struct{})
	roles := make([]models.Role, 0, 2)
	for _, key := range []string{"roles", "role"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		for _, role := range normalizeRoles(value) {
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
	}
	return roles
}

func normalizeRoles(value interface{}) []models.Role {
	switch v := value.(type) {
	case string:
		roles := make([]models.Role, 0, 1)
		for _, part := range strings.Split(v, ",") {
			if role := models.ParseRole(part); role != "" {
				roles = append(roles, role)
			}
		}
		return roles
	case []interface{}:
		roles := make([]models.Role, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := models.ParseRole(str); role != "" {
					roles = append(roles, role)
				}
			}
		}
		return roles
	default:
		return nil
	}
}

// RolesFromContext returns the role set bound by JWTProtected.
func RolesFromContext(c *fiber.Ctx) []models.Role {
	if c == nil {
		return nil
	}
	if roles, ok := c.Locals(LocalUserRoles).([]models.Role); ok {
		return roles
	}
	if role := normalizeRoleValue(c.Locals(LocalUserRole)); role != "" {
		return []models.Role{models.Role(role)}
	}
	return nil
}

// UserIDFromContext returns the subject bound by JWTProtected.
func UserIDFromContext(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(LocalUserID).(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

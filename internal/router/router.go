package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-access/internal/config"
	"github.com/noah-isme/gema-access/internal/handler"
	"github.com/noah-isme/gema-access/internal/middleware"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RegistryHandler       *handler.RegistryHandler
	RolePermissionHandler *handler.RolePermissionHandler
	UserRoleHandler       *handler.UserRoleHandler
	AccessHandler         *handler.AccessHandler
	ActivityHandler       *handler.ActivityHandler
	HealthProbes          map[string]handler.HealthProbe
	JWTMiddleware         fiber.Handler
	MutationLimiter       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	rbac := api.Group("/rbac", jwtMiddleware)

	// Authorization queries are open to every authenticated caller.
	if deps.AccessHandler != nil {
		deps.AccessHandler.Register(rbac)
	}

	// Registered after /authorize so the role guard only covers the console routes.
	console := rbac.Group("", middleware.RequireRole(models.RoleSuperAdmin.String(), models.RoleAdmin.String()))

	var mutate []fiber.Handler
	if deps.MutationLimiter != nil {
		mutate = append(mutate, deps.MutationLimiter)
	}

	if deps.RegistryHandler != nil {
		deps.RegistryHandler.Register(console, mutate...)
	}
	if deps.RolePermissionHandler != nil {
		deps.RolePermissionHandler.Register(console, mutate...)
	}
	if deps.UserRoleHandler != nil {
		deps.UserRoleHandler.Register(console, mutate...)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(console)
	}
}

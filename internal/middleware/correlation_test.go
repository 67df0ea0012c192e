package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-access/internal/middleware"
)

func TestCorrelationIDPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	var fromLocals, fromContext string
	app.Get("/", func(c *fiber.Ctx) error {
		fromLocals = middleware.GetCorrelationID(c)
		fromContext = middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderCorrelationID, "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)

	require.Equal(t, "req-42", resp.Header.Get(middleware.HeaderCorrelationID))
	require.Equal(t, "req-42", fromLocals)
	require.Equal(t, "req-42", fromContext)
}

func TestCorrelationIDFallsBackToRequestIDThenUUID(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "gateway-7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "gateway-7", resp.Header.Get(middleware.HeaderCorrelationID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderCorrelationID, strings.Repeat("x", 500))
	resp, err = app.Test(req)
	require.NoError(t, err)

	_, err = uuid.Parse(resp.Header.Get(middleware.HeaderCorrelationID))
	require.NoError(t, err)
}

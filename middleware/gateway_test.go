package middleware_test

import (
	"net/http/httptest"
	"testing"

	"marathon-platform/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("MARATHON_SERVICE_TOKEN", "svc-secret")

	app := fiber.New()
	app.Use(middleware.GatewayAuthMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestGatewayAuth(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "missing header", authHeader: "", wantStatus: fiber.StatusUnauthorized},
		{name: "wrong token", authHeader: "Bearer not-the-token", wantStatus: fiber.StatusUnauthorized},
		{name: "valid bearer token", authHeader: "Bearer svc-secret", wantStatus: fiber.StatusOK},
		{name: "valid raw token", authHeader: "svc-secret", wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newGatewayApp(t)

			req := httptest.NewRequest("GET", "/ping", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

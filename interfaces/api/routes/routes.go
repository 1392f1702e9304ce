package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/interfaces/api/handlers"
	"github.com/dekalouis/v0-drive/interfaces/api/middleware"
	"github.com/dekalouis/v0-drive/pkg/config"
)

func SetupRoutes(app *fiber.App, h *handlers.Handlers, cfg *config.Config) {
	SetupHealthRoutes(app, h)

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimiter(120, time.Minute))

	SetupFolderRoutes(api, h)
	SetupSearchRoutes(api, h)
	SetupDriveRoutes(api, h)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/interfaces/api/handlers"
)

func SetupDriveRoutes(router fiber.Router, h *handlers.Handlers) {
	drive := router.Group("/drive")

	// Registered for browser img src use; responses are cacheable
	drive.Get("/thumbnail/:driveFileId", h.Thumbnail.Proxy)
}

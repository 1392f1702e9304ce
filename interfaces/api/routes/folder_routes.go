package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/interfaces/api/handlers"
)

func SetupFolderRoutes(router fiber.Router, h *handlers.Handlers) {
	folders := router.Group("/folders")

	folders.Post("/", h.Folder.Ingest)
	folders.Get("/", h.Folder.List)
	folders.Get("/:id", h.Folder.Get)
	folders.Post("/:id/sync", h.Folder.Sync)

	router.Post("/retry", h.Folder.Retry)
}

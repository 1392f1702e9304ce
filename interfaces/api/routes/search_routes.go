package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/interfaces/api/handlers"
)

func SetupSearchRoutes(router fiber.Router, h *handlers.Handlers) {
	router.Get("/folders/:id/search", h.Search.Search)
}

package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/utils"
)

type SearchHandler struct {
	searchService services.SearchService
}

func NewSearchHandler(searchService services.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search answers a folder-scoped query.
// GET /api/v1/folders/:id/search?q=...&top_k=...
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, "invalid folder ID", err)
	}

	query := c.Query("q")
	topK, _ := strconv.Atoi(c.Query("top_k", "10"))

	resp, err := h.searchService.Search(c.Context(), id, query, topK)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Search completed", resp)
}

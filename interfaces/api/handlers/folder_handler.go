package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/dekalouis/v0-drive/domain/dto"
	"github.com/dekalouis/v0-drive/domain/services"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/utils"
)

type FolderHandler struct {
	folderService services.FolderService
	validate      *validator.Validate
}

func NewFolderHandler(folderService services.FolderService) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		validate:      validator.New(),
	}
}

// Ingest registers a Drive folder and kicks off the caption pipeline.
// POST /api/v1/folders
func (h *FolderHandler) Ingest(c *fiber.Ctx) error {
	var req dto.IngestFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, "invalid request body", err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, "folder_url is required", err)
	}

	resp, err := h.folderService.Ingest(c.Context(), &req)
	if err != nil {
		return err
	}
	return utils.AcceptedResponse(c, "Folder ingestion started", resp)
}

// List returns the known folders, newest first.
// GET /api/v1/folders
func (h *FolderHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	resp, err := h.folderService.List(c.Context(), page, limit)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Folders retrieved", resp)
}

// Get returns one folder with a page of its images and per-status counts.
// GET /api/v1/folders/:id
func (h *FolderHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, "invalid folder ID", err)
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	resp, err := h.folderService.Get(c.Context(), id, offset, limit)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Folder retrieved", resp)
}

// Sync re-scans the folder against Drive and reports the diff.
// Captioning work for new or changed images continues in the background.
// POST /api/v1/folders/:id/sync
func (h *FolderHandler) Sync(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, "invalid folder ID", err)
	}

	var req dto.SyncFolderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.Wrap(apperrors.KindInvalidInput, "invalid request body", err)
		}
	}

	resp, err := h.folderService.Sync(c.Context(), id, &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Folder synced", resp)
}

// Retry re-queues failed images: one image, one folder's failures, or
// everything failed when no scope is given.
// POST /api/v1/retry
func (h *FolderHandler) Retry(c *fiber.Ctx) error {
	var req dto.RetryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.Wrap(apperrors.KindInvalidInput, "invalid request body", err)
		}
	}

	resp, err := h.folderService.Retry(c.Context(), &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Retry queued", resp)
}

package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/infrastructure/googledrive"
	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

const defaultThumbnailSize = 400

// ThumbnailFetcher is the slice of the Drive client the proxy needs.
type ThumbnailFetcher interface {
	FreshThumbnailURL(ctx context.Context, cred *googledrive.Credential, fileID string, size int) (string, error)
	DownloadThumbnail(ctx context.Context, url string) ([]byte, string, error)
}

type ThumbnailHandler struct {
	drive ThumbnailFetcher
}

func NewThumbnailHandler(drive ThumbnailFetcher) *ThumbnailHandler {
	return &ThumbnailHandler{drive: drive}
}

// Proxy streams a Drive thumbnail through the server. Drive thumbnail
// URLs expire and are CORS-hostile, so clients fetch them here instead.
// GET /api/v1/drive/thumbnail/:driveFileId?size=...
func (h *ThumbnailHandler) Proxy(c *fiber.Ctx) error {
	fileID := c.Params("driveFileId")
	if fileID == "" {
		return apperrors.New(apperrors.KindInvalidInput, "drive file ID is required")
	}
	size, _ := strconv.Atoi(c.Query("size", strconv.Itoa(defaultThumbnailSize)))

	url, err := h.drive.FreshThumbnailURL(c.Context(), nil, fileID, size)
	if err != nil {
		return err
	}
	data, contentType, err := h.drive.DownloadThumbnail(c.Context(), url)
	if err != nil {
		return err
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=7200")
	return c.Send(data)
}

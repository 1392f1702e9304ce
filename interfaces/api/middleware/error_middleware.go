package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
	"github.com/dekalouis/v0-drive/pkg/utils"
)

// kindStatus maps the error taxonomy onto HTTP status codes.
var kindStatus = map[apperrors.Kind]int{
	apperrors.KindInvalidInput:             fiber.StatusBadRequest,
	apperrors.KindNotFound:                 fiber.StatusNotFound,
	apperrors.KindPermissionDenied:         fiber.StatusForbidden,
	apperrors.KindEmptyFolder:              fiber.StatusUnprocessableEntity,
	apperrors.KindFolderCapExceeded:        fiber.StatusUnprocessableEntity,
	apperrors.KindRateLimitExhausted:       fiber.StatusTooManyRequests,
	apperrors.KindQueueUnavailable:         fiber.StatusServiceUnavailable,
	apperrors.KindStoreUnavailable:         fiber.StatusServiceUnavailable,
	apperrors.KindVectorBackendUnavailable: fiber.StatusServiceUnavailable,
}

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An error occurred"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			if mapped, ok := kindStatus[appErr.Kind]; ok {
				code = mapped
			}
			message = appErr.Message
		}

		logger.Error(logger.CategoryAPI, "error_handler", "Request error occurred", err, map[string]interface{}{
			"status_code": code, "path": c.Path(), "method": c.Method(),
		})

		return utils.ErrorResponse(c, code, message, err)
	}
}

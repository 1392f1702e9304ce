package utils

import "github.com/gofiber/fiber/v2"

// Response is the envelope all API handlers return.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse sends a 200 with the standard envelope.
func SuccessResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreatedResponse sends a 201 with the standard envelope.
func CreatedResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// AcceptedResponse sends a 202 for work that continues in the background.
func AcceptedResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error with the standard envelope.
func ErrorResponse(c *fiber.Ctx, code int, message string, err error) error {
	resp := Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.Status(code).JSON(resp)
}

// BadRequestResponse sends a 400.
func BadRequestResponse(c *fiber.Ctx, message string, err error) error {
	return ErrorResponse(c, fiber.StatusBadRequest, message, err)
}

// NotFoundResponse sends a 404.
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, fiber.StatusNotFound, message, nil)
}

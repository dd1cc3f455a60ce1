package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every MarkWise endpoint replies with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
}

// SendSuccess sends a 200 envelope with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success envelope with an explicit status,
// for endpoints that create resources.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "ok"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends a failure envelope. Optional details carry field-level
// validation messages without cluttering the top-level message.
func SendError(c *fiber.Ctx, status int, message string, details ...string) error {
	if message == "" {
		message = "request failed"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Details: details,
	})
}

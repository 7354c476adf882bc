package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// correlationID prefers the request id assigned by the requestid middleware.
func correlationID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); id != "" {
		return id
	}
	return uuid.NewString()
}

func errorJSON(c *fiber.Ctx, status int, code, details string) error {
	body := fiber.Map{"ok": false, "error": code}
	if details != "" {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}

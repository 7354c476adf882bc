package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// LocalsActor holds the audit actor label of an authenticated admin caller.
const LocalsActor = "ADMIN_ACTOR"

// AdminKeyMiddleware admits requests whose API key matches one of the bcrypt
// hashes. Plain keys are never stored.
func AdminKeyMiddleware(hashes []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(hashes) == 0 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden", "message": "Admin API is disabled"})
		}

		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "unauthorized", "message": "Missing API key"})
		}

		for _, hash := range hashes {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil {
				c.Locals(LocalsActor, ActorLabel(apiKey))
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "unauthorized", "message": "Invalid API key"})
	}
}

// ActorLabel identifies a key in audit logs without revealing it.
func ActorLabel(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "admin-key:" + hex.EncodeToString(sum[:])[:12]
}

// Actor returns the audit actor for the current request.
func Actor(c *fiber.Ctx) string {
	if actor, ok := c.Locals(LocalsActor).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

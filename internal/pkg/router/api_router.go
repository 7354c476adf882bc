package router

import (
	"github.com/gofiber/fiber/v2"
)

type ApiRouter struct {
	handlers Handlers
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	v1 := app.Group("/api/v1")
	v1.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "PropSync api v1",
		})
	})

	// Deliveries are never rate limited; the platform does not retry 429s.
	v1.Post("/webhooks/volumetrica", h.handlers.Webhook.HandleVolumetricaWebhook)
}

func NewApiRouter(h Handlers) *ApiRouter {
	return &ApiRouter{handlers: h}
}

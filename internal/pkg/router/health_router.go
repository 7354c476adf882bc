package router

import "github.com/gofiber/fiber/v2"

type HealthRouter struct {
	handlers Handlers
}

func (h HealthRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.handlers.Health.HandleHealth)
}

func NewHealthRouter(h Handlers) *HealthRouter {
	return &HealthRouter{handlers: h}
}

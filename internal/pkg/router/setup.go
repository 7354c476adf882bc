package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PropSync/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers carries everything the routers mount.
type Handlers struct {
	Webhook *controllers.WebhookController
	Admin   *controllers.AdminController
	Health  *controllers.HealthController

	AdminKeyHashes []string
	// LimiterStorage backs the admin rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, h Handlers) {
	setup(app, NewHealthRouter(h), NewApiRouter(h), NewAdminRouter(h))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

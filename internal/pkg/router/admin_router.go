package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/PropSync/internal/pkg/middleware"
)

type AdminRouter struct {
	handlers Handlers
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	ac := h.handlers.Admin

	// Limit before the key check so failed attempts also pay.
	admin := app.Group("/api/v1/admin",
		limiter.New(limiter.Config{
			Max:        60,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return "admin:" + c.IP()
			},
			Storage: h.handlers.LimiterStorage,
		}),
		middleware.AdminKeyMiddleware(h.handlers.AdminKeyHashes),
	)

	admin.Post("/reconcile", ac.HandleReconcile)

	// Actions proxied to the platform
	admin.Post("/accounts/:accountId/enable", ac.HandleEnableAccount)
	admin.Post("/accounts/:accountId/disable", ac.HandleDisableAccount)
	admin.Post("/accounts/:accountId/status", ac.HandleChangeAccountStatus)

	admin.Post("/subscriptions", ac.HandleCreateSubscription)
	admin.Put("/subscriptions/:subscriptionId", ac.HandleUpdateSubscription)
	admin.Post("/subscriptions/:subscriptionId/activate", ac.HandleActivateSubscription)
	admin.Post("/subscriptions/:subscriptionId/deactivate", ac.HandleDeactivateSubscription)
	admin.Delete("/subscriptions/:subscriptionId", ac.HandleDeleteSubscription)

	admin.Post("/users", ac.HandleCreateUser)
	admin.Put("/users/:userId", ac.HandleUpdateUser)

	// Read models
	admin.Get("/events/:eventId", ac.HandleGetEvent)
	admin.Get("/trades", ac.HandleListTrades)

	// fiber metrics
	admin.Get("/metrics", monitor.New(monitor.Config{Title: "PropSync Metrics"}))
}

func NewAdminRouter(h Handlers) *AdminRouter {
	return &AdminRouter{handlers: h}
}

package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/internal/pkg/ingest"
)

const webhookTimeout = 15 * time.Second

type WebhookController struct {
	ingest *ingest.Service
}

func NewWebhookController(svc *ingest.Service) *WebhookController {
	return &WebhookController{ingest: svc}
}

// HandleVolumetricaWebhook ingests one platform delivery. The body is copied
// before anything else so signature checks see the exact bytes received.
func (wc *WebhookController) HandleVolumetricaWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	headers := map[string]string{}
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	resp := wc.ingest.Handle(ctx, ingest.Request{
		Body:          rawBody,
		Header:        func(name string) string { return c.Get(name) },
		Headers:       headers,
		SourceIP:      c.IP(),
		CorrelationID: correlationID(c),
	})
	if resp.Err != nil && resp.IsClientError() {
		log.Warnf("[Webhook] rejected %s from %s: %v", resp.EventID, c.IP(), resp.Err)
	}
	return c.Status(resp.Status).JSON(resp)
}

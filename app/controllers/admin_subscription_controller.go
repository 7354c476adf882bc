package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

type subscriptionBody struct {
	UserID         string   `json:"userId" validate:"max=191"`
	AccountID      string   `json:"accountId" validate:"max=191"`
	Platform       string   `json:"platform" validate:"max=64"`
	DataFeeds      []string `json:"dataFeeds" validate:"dive,required,max=64"`
	ExpirationDate string   `json:"expirationDate" validate:"omitempty,datetime=2006-01-02"`
}

func (b subscriptionBody) request() volumetrica.SubscriptionRequest {
	return volumetrica.SubscriptionRequest{
		UserID:         strings.TrimSpace(b.UserID),
		AccountID:      strings.TrimSpace(b.AccountID),
		Platform:       strings.TrimSpace(b.Platform),
		DataFeeds:      b.DataFeeds,
		ExpirationDate: b.ExpirationDate,
	}
}

// HandleCreateSubscription creates a subscription upstream and projects the
// returned record.
func (ac *AdminController) HandleCreateSubscription(c *fiber.Ctx) error {
	var body subscriptionBody
	if !ac.bind(c, &body) {
		return nil
	}
	if strings.TrimSpace(body.UserID) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "userId is required")
	}
	return ac.subscriptionWrite(c, audit.ActionSubscriptionCreate, "", func(ctx context.Context) (*volumetrica.Subscription, error) {
		return ac.upstream.CreateSubscription(ctx, body.request())
	})
}

func (ac *AdminController) HandleUpdateSubscription(c *fiber.Ctx) error {
	subscriptionID := strings.TrimSpace(c.Params("subscriptionId"))
	var body subscriptionBody
	if !ac.bind(c, &body) {
		return nil
	}
	return ac.subscriptionWrite(c, audit.ActionSubscriptionUpdate, subscriptionID, func(ctx context.Context) (*volumetrica.Subscription, error) {
		return ac.upstream.UpdateSubscription(ctx, subscriptionID, body.request())
	})
}

func (ac *AdminController) HandleActivateSubscription(c *fiber.Ctx) error {
	subscriptionID := strings.TrimSpace(c.Params("subscriptionId"))
	return ac.upstreamAction(c, audit.ActionSubscriptionActivate, "subscription", subscriptionID, nil, func(ctx context.Context) error {
		return ac.upstream.ActivateSubscription(ctx, subscriptionID)
	})
}

func (ac *AdminController) HandleDeactivateSubscription(c *fiber.Ctx) error {
	subscriptionID := strings.TrimSpace(c.Params("subscriptionId"))
	return ac.upstreamAction(c, audit.ActionSubscriptionDisable, "subscription", subscriptionID, nil, func(ctx context.Context) error {
		return ac.upstream.DeactivateSubscription(ctx, subscriptionID)
	})
}

// HandleDeleteSubscription deletes upstream only; the projection follows
// when the platform sends the delete event.
func (ac *AdminController) HandleDeleteSubscription(c *fiber.Ctx) error {
	subscriptionID := strings.TrimSpace(c.Params("subscriptionId"))
	return ac.upstreamAction(c, audit.ActionSubscriptionDelete, "subscription", subscriptionID, nil, func(ctx context.Context) error {
		return ac.upstream.DeleteSubscription(ctx, subscriptionID)
	})
}

// subscriptionWrite proxies a create or update and stores the result. An
// empty subscriptionID means create; the new id is audited in metadata.
func (ac *AdminController) subscriptionWrite(c *fiber.Ctx, action, subscriptionID string, call func(ctx context.Context) (*volumetrica.Subscription, error)) error {
	if action == audit.ActionSubscriptionUpdate && subscriptionID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "subscription id is required")
	}

	meta := map[string]any{}
	var sub *volumetrica.Subscription
	err := ac.callUpstream(c, action, "subscription", subscriptionID, meta, func(ctx context.Context) error {
		var err error
		if sub, err = call(ctx); err != nil {
			return err
		}
		meta["subscriptionId"] = sub.SubscriptionID.String()
		if err := ac.recorder.RecordSubscription(ctx, sub); err != nil {
			log.Warnf("[Admin] project subscription %s: %v", sub.SubscriptionID, err)
		}
		return nil
	})
	if err != nil {
		return upstreamError(c, "subscription", err)
	}
	return c.JSON(fiber.Map{"ok": true, "subscription": sub})
}

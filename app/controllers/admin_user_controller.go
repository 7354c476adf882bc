package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

type createUserBody struct {
	ExternalID string `json:"externalId" validate:"required,max=191"`
	Email      string `json:"email" validate:"required,email,max=200"`
	FirstName  string `json:"firstName" validate:"max=100"`
	LastName   string `json:"lastName" validate:"max=100"`
	SendInvite bool   `json:"sendInvite"`
}

type updateUserBody struct {
	Email     string `json:"email" validate:"omitempty,email,max=200"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// HandleCreateUser provisions a platform user for a local account holder and
// records the external id link used by reconciliation.
func (ac *AdminController) HandleCreateUser(c *fiber.Ctx) error {
	var body createUserBody
	if !ac.bind(c, &body) {
		return nil
	}
	req := volumetrica.CreateUserRequest{
		ExternalID: strings.TrimSpace(body.ExternalID),
		Email:      strings.TrimSpace(body.Email),
		FirstName:  strings.TrimSpace(body.FirstName),
		LastName:   strings.TrimSpace(body.LastName),
		SendInvite: body.SendInvite,
	}
	return ac.userWrite(c, audit.ActionUserCreate, req.ExternalID, func(ctx context.Context) (*volumetrica.User, error) {
		return ac.upstream.CreateUser(ctx, req)
	})
}

func (ac *AdminController) HandleUpdateUser(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "user id is required")
	}
	var body updateUserBody
	if !ac.bind(c, &body) {
		return nil
	}
	req := volumetrica.UpdateUserRequest{
		Email:     strings.TrimSpace(body.Email),
		FirstName: strings.TrimSpace(body.FirstName),
		LastName:  strings.TrimSpace(body.LastName),
	}
	return ac.userWrite(c, audit.ActionUserUpdate, userID, func(ctx context.Context) (*volumetrica.User, error) {
		return ac.upstream.UpdateUser(ctx, userID, req)
	})
}

func (ac *AdminController) userWrite(c *fiber.Ctx, action, targetID string, call func(ctx context.Context) (*volumetrica.User, error)) error {
	meta := map[string]any{}
	var user *volumetrica.User
	err := ac.callUpstream(c, action, "user", targetID, meta, func(ctx context.Context) error {
		var err error
		if user, err = call(ctx); err != nil {
			return err
		}
		meta["platformUserId"] = user.UserID.String()
		if err := ac.recorder.RecordPlatformUser(ctx, user); err != nil {
			log.Warnf("[Admin] project platform user %s: %v", user.UserID, err)
		}
		return nil
	})
	if err != nil {
		return upstreamError(c, "user", err)
	}
	return c.JSON(fiber.Map{"ok": true, "user": user})
}

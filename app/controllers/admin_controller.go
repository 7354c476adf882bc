package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/ledger"
	"github.com/ManuelReschke/PropSync/internal/pkg/middleware"
	"github.com/ManuelReschke/PropSync/internal/pkg/projection"
	"github.com/ManuelReschke/PropSync/internal/pkg/reconcile"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

const (
	adminTimeout      = 60 * time.Second
	defaultTradeLimit = 100
	maxTradeLimit     = 500
)

// Upstream is the set of operator actions proxied to the platform API.
type Upstream interface {
	EnableAccount(ctx context.Context, accountID string) error
	DisableAccount(ctx context.Context, accountID string) error
	ChangeAccountStatus(ctx context.Context, accountID string, req volumetrica.AccountStatusRequest) error

	CreateSubscription(ctx context.Context, req volumetrica.SubscriptionRequest) (*volumetrica.Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, req volumetrica.SubscriptionRequest) (*volumetrica.Subscription, error)
	ActivateSubscription(ctx context.Context, subscriptionID string) error
	DeactivateSubscription(ctx context.Context, subscriptionID string) error
	DeleteSubscription(ctx context.Context, subscriptionID string) error

	CreateUser(ctx context.Context, req volumetrica.CreateUserRequest) (*volumetrica.User, error)
	UpdateUser(ctx context.Context, userID string, req volumetrica.UpdateUserRequest) (*volumetrica.User, error)
}

// Recorder stores entities returned by upstream calls in the projection.
type Recorder interface {
	RecordSubscription(ctx context.Context, sub *volumetrica.Subscription) error
	RecordPlatformUser(ctx context.Context, user *volumetrica.User) error
}

// AdminDeps groups the collaborators of AdminController.
type AdminDeps struct {
	Reconcile  *reconcile.Service
	Upstream   Upstream
	Ledger     ledger.Ledger
	Repository projection.Repository
	Recorder   Recorder
	Audit      audit.Recorder
}

type AdminController struct {
	reconcile *reconcile.Service
	upstream  Upstream
	ledger    ledger.Ledger
	repo      projection.Repository
	recorder  Recorder
	audit     audit.Recorder
	validate  *validator.Validate
}

func NewAdminController(deps AdminDeps) *AdminController {
	if deps.Audit == nil {
		deps.Audit = audit.Nop
	}
	return &AdminController{
		reconcile: deps.Reconcile,
		upstream:  deps.Upstream,
		ledger:    deps.Ledger,
		repo:      deps.Repository,
		recorder:  deps.Recorder,
		audit:     deps.Audit,
		validate:  validator.New(),
	}
}

// HandleReconcile diffs upstream state against the projection for a user
// and/or an account.
func (ac *AdminController) HandleReconcile(c *fiber.Ctx) error {
	var req reconcile.Request
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "body must be JSON")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), adminTimeout)
	defer cancel()

	result, err := ac.reconcile.Run(ctx, req, middleware.Actor(c), correlationID(c))
	if err != nil {
		var upstream *reconcile.UpstreamError
		switch {
		case errors.Is(err, reconcile.ErrInvalidRequest):
			return errorJSON(c, fiber.StatusBadRequest, "invalid_request", err.Error())
		case errors.As(err, &upstream):
			return errorJSON(c, fiber.StatusBadGateway, "upstream_api_failed", err.Error())
		default:
			return errorJSON(c, fiber.StatusInternalServerError, "reconcile_failed", "")
		}
	}
	return c.JSON(fiber.Map{"ok": true, "result": result})
}

type accountStatusBody struct {
	Status string `json:"status" validate:"required,max=64"`
	Reason string `json:"reason" validate:"max=500"`
}

func (ac *AdminController) HandleEnableAccount(c *fiber.Ctx) error {
	accountID := strings.TrimSpace(c.Params("accountId"))
	return ac.upstreamAction(c, audit.ActionAccountEnable, "account", accountID, nil, func(ctx context.Context) error {
		return ac.upstream.EnableAccount(ctx, accountID)
	})
}

func (ac *AdminController) HandleDisableAccount(c *fiber.Ctx) error {
	accountID := strings.TrimSpace(c.Params("accountId"))
	return ac.upstreamAction(c, audit.ActionAccountDisable, "account", accountID, nil, func(ctx context.Context) error {
		return ac.upstream.DisableAccount(ctx, accountID)
	})
}

func (ac *AdminController) HandleChangeAccountStatus(c *fiber.Ctx) error {
	accountID := strings.TrimSpace(c.Params("accountId"))

	var body accountStatusBody
	if err := c.BodyParser(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "body must be JSON")
	}
	body.Status = strings.TrimSpace(body.Status)
	if err := ac.validate.Struct(body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}

	meta := map[string]any{"status": body.Status, "reason": body.Reason}
	return ac.upstreamAction(c, audit.ActionAccountStatus, "account", accountID, meta, func(ctx context.Context) error {
		return ac.upstream.ChangeAccountStatus(ctx, accountID, volumetrica.AccountStatusRequest{Status: body.Status, Reason: body.Reason})
	})
}

// upstreamAction runs a proxied call that returns nothing and answers with
// the target id.
func (ac *AdminController) upstreamAction(c *fiber.Ctx, action, targetType, targetID string, meta map[string]any, call func(ctx context.Context) error) error {
	if targetID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", targetType+" id is required")
	}
	if err := ac.callUpstream(c, action, targetType, targetID, meta, call); err != nil {
		return upstreamError(c, targetType, err)
	}
	return c.JSON(fiber.Map{"ok": true, targetType + "Id": targetID})
}

// callUpstream runs call under the admin timeout and audits the outcome.
// call may add to meta before it is recorded.
func (ac *AdminController) callUpstream(c *fiber.Ctx, action, targetType, targetID string, meta map[string]any, call func(ctx context.Context) error) error {
	if meta == nil {
		meta = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), adminTimeout)
	defer cancel()

	err := call(ctx)
	if err != nil {
		meta["error"] = err.Error()
		log.Errorf("[Admin] %s on %s %s failed: %v", action, targetType, targetID, err)
	}
	ac.audit.Record(ctx, audit.Entry{
		Action:        action,
		Actor:         middleware.Actor(c),
		TargetType:    targetType,
		TargetID:      targetID,
		CorrelationID: correlationID(c),
		Metadata:      meta,
	})
	return err
}

func upstreamError(c *fiber.Ctx, targetType string, err error) error {
	if volumetrica.IsNotFound(err) {
		return errorJSON(c, fiber.StatusNotFound, targetType+"_not_found", err.Error())
	}
	return errorJSON(c, fiber.StatusBadGateway, "upstream_api_failed", err.Error())
}

// bind parses and validates a JSON body. On failure the 400 response is
// already written and false is returned.
func (ac *AdminController) bind(c *fiber.Ctx, out any) bool {
	if err := c.BodyParser(out); err != nil {
		_ = errorJSON(c, fiber.StatusBadRequest, "invalid_request", "body must be JSON")
		return false
	}
	if err := ac.validate.Struct(out); err != nil {
		_ = errorJSON(c, fiber.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// HandleGetEvent returns a ledger entry and every projected row it last wrote.
func (ac *AdminController) HandleGetEvent(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("eventId"))
	event, err := ac.ledger.Get(c.UserContext(), eventID)
	if errors.Is(err, ledger.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "event_not_found", "")
	}
	if err != nil {
		log.Errorf("[Admin] load event %s: %v", eventID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "event_lookup_failed", "")
	}

	lineage, err := ac.repo.FindByLastEventID(c.UserContext(), event.EventID)
	if err != nil {
		log.Errorf("[Admin] load lineage of %s: %v", eventID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "event_lookup_failed", "")
	}
	return c.JSON(fiber.Map{"ok": true, "event": event, "projections": lineage})
}

type tradeView struct {
	models.TradingTrade
	Net string `json:"net_pl"`
}

// HandleListTrades lists projected trades of an account with derived net P&L.
func (ac *AdminController) HandleListTrades(c *fiber.Ctx) error {
	accountID := strings.TrimSpace(c.Query("accountId"))
	if accountID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "accountId is required")
	}
	limit := c.QueryInt("limit", defaultTradeLimit)
	if limit <= 0 || limit > maxTradeLimit {
		limit = defaultTradeLimit
	}

	trades, err := ac.repo.ListTradesByAccount(c.UserContext(), accountID, limit)
	if err != nil {
		log.Errorf("[Admin] list trades of %s: %v", accountID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "trade_lookup_failed", "")
	}

	out := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeView{TradingTrade: t, Net: t.NetPL().String()})
	}
	return c.JSON(fiber.Map{"ok": true, "accountId": accountID, "trades": out})
}

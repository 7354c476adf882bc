package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
	"github.com/ManuelReschke/PropSync/internal/pkg/webhook"
)

// Table names reported in Result.Updates.
const (
	UpdateAccounts      = "trading_accounts"
	UpdateSubscriptions = "trading_subscriptions"
	UpdatePositions     = "trading_positions"
	UpdateTrades        = "trading_trades"
	UpdatePlatformUsers = "platform_users"
)

// EventMeta is the ledger context of the event being projected.
type EventMeta struct {
	EventID    string
	ReceivedAt time.Time
}

// Result lists touched tables and failed steps. Failures of one step never
// roll back another.
type Result struct {
	Updates []string `json:"updates"`
	Errors  []string `json:"errors"`
}

// OK reports whether every step succeeded.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

func (r *Result) touched(table string) {
	for _, u := range r.Updates {
		if u == table {
			return
		}
	}
	r.Updates = append(r.Updates, table)
}

// Service applies webhook envelopes to the projection tables.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Apply runs every projection step the envelope has data for. Each step is
// isolated: its error or panic is recorded and the next step still runs.
func (s *Service) Apply(ctx context.Context, env webhook.Envelope, meta EventMeta) Result {
	if meta.ReceivedAt.IsZero() {
		meta.ReceivedAt = s.now()
	}
	res := Result{Updates: []string{}, Errors: []string{}}

	s.step(&res, "accountLink", UpdateAccounts, func() (bool, error) { return s.healAccountLink(ctx, env, meta) })
	if webhook.Present(env.TradingAccount) {
		s.step(&res, "tradingAccount", UpdateAccounts, func() (bool, error) { return s.upsertAccount(ctx, env, meta) })
	} else {
		s.step(&res, "accountPlaceholder", UpdateAccounts, func() (bool, error) { return s.ensurePlaceholder(ctx, env, meta) })
	}
	if webhook.Present(env.Subscription) {
		s.step(&res, "subscription", UpdateSubscriptions, func() (bool, error) { return s.upsertSubscription(ctx, env, meta) })
	}
	if block, name := positionBlock(env); block != nil {
		s.step(&res, name, UpdatePositions, func() (bool, error) { return s.upsertPositions(ctx, block, env, meta) })
	}
	if webhook.Present(env.TradeReport) {
		s.step(&res, "tradeReport", UpdateTrades, func() (bool, error) { return s.upsertTrades(ctx, env, meta) })
	}
	if webhook.Present(env.OrganizationUser) {
		s.step(&res, "organizationUser", UpdatePlatformUsers, func() (bool, error) { return s.upsertPlatformUser(ctx, env, meta) })
	}
	return res
}

func (s *Service) step(res *Result, name, table string, fn func() (bool, error)) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Projection] %s panicked: %v", name, r)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: panic: %v", name, r))
		}
	}()

	touched, err := fn()
	if touched {
		res.touched(table)
	}
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, err))
	}
}

// positionBlock picks tradingPosition over tradingPortfolio.
func positionBlock(env webhook.Envelope) ([]byte, string) {
	if webhook.Present(env.TradingPosition) {
		return env.TradingPosition, "tradingPosition"
	}
	if webhook.Present(env.TradingPortfolio) {
		return env.TradingPortfolio, "tradingPortfolio"
	}
	return nil, ""
}

func (s *Service) healAccountLink(ctx context.Context, env webhook.Envelope, meta EventMeta) (bool, error) {
	accountID, userID := env.AccountID.String(), env.UserID.String()
	if accountID == "" || userID == "" {
		return false, nil
	}
	return s.repo.LinkAccountUser(ctx, accountID, userID, eventIDPtr(meta))
}

func (s *Service) upsertAccount(ctx context.Context, env webhook.Envelope, meta EventMeta) (bool, error) {
	acc, err := volumetrica.DecodeAccount(env.TradingAccount)
	if err != nil {
		return false, err
	}
	row := accountRow(acc, env.AccountID, env.UserID)
	if row.AccountID == "" {
		return false, errors.New("accountId is missing")
	}
	row.LastEventID = eventIDPtr(meta)
	if env.Lifecycle() == webhook.LifecycleDeleted {
		deletedAt := meta.ReceivedAt.UTC()
		row.IsDeleted = true
		row.DeletedAt = &deletedAt
	}
	if err := s.repo.UpsertAccount(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ensurePlaceholder(ctx context.Context, env webhook.Envelope, meta EventMeta) (bool, error) {
	accountID := env.AccountID.String()
	if accountID == "" {
		return false, nil
	}
	raw := map[string]any{"accountId": accountID}
	if userID := env.UserID.String(); userID != "" {
		raw["userId"] = userID
	}
	row := &models.TradingAccount{
		AccountID:   accountID,
		UserID:      env.UserID.Ptr(),
		RawJSON:     encodeJSON(raw),
		LastEventID: eventIDPtr(meta),
	}
	return s.repo.InsertAccountIfAbsent(ctx, row)
}

func (s *Service) upsertSubscription(ctx context.Context, env webhook.Envelope, meta EventMeta) (bool, error) {
	sub, err := volumetrica.DecodeSubscription(env.Subscription)
	if err != nil {
		return false, err
	}
	if sub.SubscriptionID == "" {
		return false, errors.New("subscriptionId is missing")
	}

	row := subscriptionRow(sub, env.UserID, env.AccountID)
	row.LastEventID = eventIDPtr(meta)
	if env.Lifecycle() == webhook.LifecycleDeleted {
		deletedAt := meta.ReceivedAt.UTC()
		row.IsDeleted = true
		row.DeletedAt = &deletedAt
	}
	if err := s.repo.UpsertSubscription(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) upsertPositions(ctx context.Context, block []byte, env webhook.Envelope, meta EventMeta) (bool, error) {
	items, err := webhook.Items(block)
	if err != nil {
		return false, err
	}

	var (
		touched bool
		errs    []error
	)
	for i, item := range items {
		pos, err := volumetrica.DecodePosition(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		accountID := firstNonEmpty(pos.AccountID, env.AccountID).String()
		if accountID == "" {
			errs = append(errs, fmt.Errorf("[%d]: accountId is missing", i))
			continue
		}
		row := &models.TradingPosition{
			PositionKey: PositionKey(pos, accountID),
			PositionID:  pos.PositionID.Ptr(),
			AccountID:   accountID,
			ContractID:  pos.ContractID.Ptr(),
			Symbol:      pos.Symbol,
			EntryDate:   parseTime(pos.EntryDate),
			Price:       pos.Price,
			Quantity:    pos.Quantity,
			DailyPL:     pos.DailyPL,
			OpenPL:      pos.OpenPL,
			RawJSON:     string(pos.Raw),
			LastEventID: eventIDPtr(meta),
		}
		if err := s.repo.UpsertPosition(ctx, row); err != nil {
			errs = append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		touched = true
	}
	return touched, errors.Join(errs...)
}

func (s *Service) upsertTrades(ctx context.Context, env webhook.Envelope, meta EventMeta) (bool, error) {
	items, err := webhook.Items(env.TradeReport)
	if err != nil {
		return false, err
	}

	var (
		touched bool
		errs    []error
	)
	for i, item := range items {
		trade, err := volumetrica.DecodeTrade(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		accountID := firstNonEmpty(trade.AccountID, env.AccountID).String()
		if accountID == "" {
			errs = append(errs, fmt.Errorf("[%d]: accountId is missing", i))
			continue
		}
		row := &models.TradingTrade{
			TradeKey:       TradeKey(trade, accountID),
			TradeID:        trade.TradeID.Ptr(),
			AccountID:      accountID,
			ContractID:     trade.ContractID.Ptr(),
			Symbol:         trade.Symbol,
			EntryDate:      parseTime(trade.EntryDate),
			ExitDate:       parseTime(trade.ExitDate),
			Quantity:       trade.Quantity,
			OpenPrice:      trade.OpenPrice,
			ClosePrice:     trade.ClosePrice,
			PL:             trade.PL,
			ConvertedPL:    trade.ConvertedPL,
			CommissionPaid: trade.CommissionPaid,
			RawJSON:        string(trade.Raw),
			LastEventID:    eventIDPtr(meta),
		}
		if err := s.repo.UpsertTrade(ctx, row); err != nil {
			errs = append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		touched = true
	}
	return touched, errors.Join(errs...)
}

func (s *Service) upsertPlatformUser(ctx context.Context, env webhook.Envelope, meta EventMeta) (bool, error) {
	user, err := volumetrica.DecodeUser(env.OrganizationUser)
	if err != nil {
		return false, err
	}
	userID := firstNonEmpty(user.UserID, env.UserID).String()
	if userID == "" {
		return false, errors.New("userId is missing")
	}
	row := platformUserRow(user, userID)
	row.LastEventID = eventIDPtr(meta)
	if err := s.repo.UpsertPlatformUser(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

// BackfillAccount stores an account fetched from the upstream API. There is
// no ledger event behind it, so last_event_id is left empty. ownerUserID is
// used when the upstream record carries no user.
func (s *Service) BackfillAccount(ctx context.Context, acc *volumetrica.Account, ownerUserID string) error {
	row := accountRow(acc, "", volumetrica.FlexString(ownerUserID))
	if row.AccountID == "" {
		return errors.New("accountId is missing")
	}
	return s.repo.UpsertAccount(ctx, row)
}

// RecordSubscription stores a subscription returned by an admin call to the
// upstream API.
func (s *Service) RecordSubscription(ctx context.Context, sub *volumetrica.Subscription) error {
	if sub.SubscriptionID == "" {
		return errors.New("subscriptionId is missing")
	}
	return s.repo.UpsertSubscription(ctx, subscriptionRow(sub, "", ""))
}

// RecordPlatformUser stores a user returned by an admin call to the upstream
// API, linking it to its external id for reconciliation.
func (s *Service) RecordPlatformUser(ctx context.Context, user *volumetrica.User) error {
	if user.UserID == "" {
		return errors.New("userId is missing")
	}
	return s.repo.UpsertPlatformUser(ctx, platformUserRow(user, user.UserID.String()))
}

func subscriptionRow(sub *volumetrica.Subscription, fallbackUserID, fallbackAccountID volumetrica.FlexString) *models.TradingSubscription {
	return &models.TradingSubscription{
		SubscriptionID: sub.SubscriptionID.String(),
		UserID:         firstNonEmpty(sub.UserID, fallbackUserID).Ptr(),
		AccountID:      firstNonEmpty(sub.AccountID, fallbackAccountID).Ptr(),
		Status:         webhook.NormalizeEnumValue(sub.Status),
		ActivationDate: parseTime(sub.ActivationDate),
		ExpirationDate: parseTime(sub.ExpirationDate),
		DataFeedsJSON:  rawString(sub.DataFeeds),
		Platform:       webhook.NormalizeEnumValue(sub.Platform),
		LicenseKey:     sub.LicenseKey,
		DownloadURL:    sub.DownloadURL,
		RawJSON:        string(sub.Raw),
	}
}

func platformUserRow(user *volumetrica.User, userID string) *models.PlatformUser {
	return &models.PlatformUser{
		VolumetricaUserID: userID,
		ExternalID:        user.ExternalID.Ptr(),
		Email:             user.Email,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		Status:            webhook.NormalizeEnumValue(user.Status),
		InviteURL:         user.InviteURL,
		RawJSON:           string(user.Raw),
	}
}

func accountRow(acc *volumetrica.Account, fallbackAccountID, fallbackUserID volumetrica.FlexString) *models.TradingAccount {
	row := &models.TradingAccount{
		AccountID:         firstNonEmpty(acc.AccountID, fallbackAccountID).String(),
		UserID:            firstNonEmpty(acc.UserID, fallbackUserID).Ptr(),
		Status:            webhook.NormalizeEnumValue(acc.Status),
		TradingPermission: webhook.NormalizeEnumValue(acc.TradingPermission),
		Reason:            acc.Reason,
		EndDate:           parseTime(acc.EndDate),
		RuleID:            acc.RuleID.Ptr(),
		RuleName:          acc.RuleName,
		AccountFamilyID:   acc.AccountFamilyID.Ptr(),
		OwnerUserID:       acc.OwnerUserID.Ptr(),
		SnapshotJSON:      rawString(acc.Snapshot),
		RawJSON:           string(acc.Raw),
	}
	if acc.Enabled != nil {
		row.Enabled = *acc.Enabled
	}
	return row
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/projection"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
	"github.com/ManuelReschke/PropSync/internal/pkg/webhook"
)

// ErrInvalidRequest is returned when neither userId nor accountId is given.
var ErrInvalidRequest = errors.New("userId or accountId is required")

// UpstreamError aborts a reconciliation run. It maps to 502.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AccountsAPI is the part of the platform API reconciliation reads.
type AccountsAPI interface {
	GetAccount(ctx context.Context, accountID string) (*volumetrica.Account, error)
	ListUserAccounts(ctx context.Context, userID string) ([]volumetrica.Account, error)
}

// Store is the part of the projection repository reconciliation reads.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*models.TradingAccount, error)
	ListAccountIDsByUsers(ctx context.Context, userIDs ...string) ([]string, error)
	ListDeletedAccountIDsByUsers(ctx context.Context, userIDs ...string) ([]string, error)
	FindPlatformUserByExternalID(ctx context.Context, externalID string) (*models.PlatformUser, error)
}

// Backfiller writes accounts found upstream but missing locally.
type Backfiller interface {
	BackfillAccount(ctx context.Context, acc *volumetrica.Account, ownerUserID string) error
}

type Request struct {
	UserID    string `json:"userId" validate:"required_without=AccountID,max=191"`
	AccountID string `json:"accountId" validate:"required_without=UserID,max=191"`
}

type UserResult struct {
	UserID              string   `json:"userId"`
	PlatformUserID      string   `json:"platformUserId"`
	APICount            int      `json:"apiCount"`
	ProjectedCount      int      `json:"projectedCount"`
	MissingInProjection []string `json:"missingInProjection"`
	MissingInAPI        []string `json:"missingInApi"`
	DeletedInProjection []string `json:"deletedInProjection"`
	Backfilled          int      `json:"backfilled"`
	BackfillErrors      []string `json:"backfillErrors,omitempty"`
}

// AccountSnapshot is the compared subset of an account.
type AccountSnapshot struct {
	Status            *string `json:"status"`
	TradingPermission *string `json:"tradingPermission"`
	Enabled           *bool   `json:"enabled"`
	RuleID            *string `json:"ruleId"`
	RuleName          string  `json:"ruleName"`
	IsDeleted         bool    `json:"isDeleted,omitempty"`
}

type AccountResult struct {
	AccountID  string           `json:"accountId"`
	API        AccountSnapshot  `json:"api"`
	Local      *AccountSnapshot `json:"local"`
	Mismatches []string         `json:"mismatches"`
}

type Result struct {
	User    *UserResult    `json:"user,omitempty"`
	Account *AccountResult `json:"account,omitempty"`
}

type Service struct {
	api      AccountsAPI
	store    Store
	backfill Backfiller
	audit    audit.Recorder
	validate *validator.Validate
}

func NewService(api AccountsAPI, store Store, backfill Backfiller, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop
	}
	return &Service{
		api:      api,
		store:    store,
		backfill: backfill,
		audit:    recorder,
		validate: validator.New(),
	}
}

// Run reconciles the requested user and/or account. Any upstream failure
// aborts the run with an *UpstreamError after it has been audited.
func (s *Service) Run(ctx context.Context, req Request, actor, correlationID string) (*Result, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.AccountID = strings.TrimSpace(req.AccountID)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	targetType, targetID := "user", req.UserID
	if targetID == "" {
		targetType, targetID = "account", req.AccountID
	}

	result := &Result{}
	var err error
	if req.UserID != "" {
		result.User, err = s.ReconcileUser(ctx, req.UserID)
	}
	if err == nil && req.AccountID != "" {
		result.Account, err = s.ReconcileAccount(ctx, req.AccountID)
	}

	if err != nil {
		log.Errorf("[Reconcile] %s %s failed: %v", targetType, targetID, err)
		s.audit.Record(ctx, audit.Entry{
			Action:        audit.ActionReconcileFailed,
			Actor:         actor,
			TargetType:    targetType,
			TargetID:      targetID,
			CorrelationID: correlationID,
			Metadata:      map[string]any{"userId": req.UserID, "accountId": req.AccountID, "error": err.Error()},
		})
		return nil, err
	}

	meta := map[string]any{"userId": req.UserID, "accountId": req.AccountID}
	if result.User != nil {
		meta["missingInProjection"] = len(result.User.MissingInProjection)
		meta["missingInApi"] = len(result.User.MissingInAPI)
		meta["backfilled"] = result.User.Backfilled
		meta["deletedInProjection"] = len(result.User.DeletedInProjection)
	}
	if result.Account != nil {
		meta["mismatches"] = result.Account.Mismatches
	}
	s.audit.Record(ctx, audit.Entry{
		Action:        audit.ActionReconcileCompleted,
		Actor:         actor,
		TargetType:    targetType,
		TargetID:      targetID,
		CorrelationID: correlationID,
		Metadata:      meta,
	})
	return result, nil
}

// ReconcileUser diffs the upstream account list of a user against the local
// projection and backfills what is missing locally.
func (s *Service) ReconcileUser(ctx context.Context, userID string) (*UserResult, error) {
	platformUserID, err := s.resolvePlatformUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	apiAccounts, err := s.api.ListUserAccounts(ctx, platformUserID)
	if err != nil {
		return nil, &UpstreamError{Op: "list user accounts", Err: err}
	}
	apiIDs := make([]string, 0, len(apiAccounts))
	for _, acc := range apiAccounts {
		if id := acc.AccountID.String(); id != "" {
			apiIDs = append(apiIDs, id)
		}
	}

	owners := []string{userID}
	if platformUserID != userID {
		owners = append(owners, platformUserID)
	}
	localIDs, err := s.store.ListAccountIDsByUsers(ctx, owners...)
	if err != nil {
		return nil, fmt.Errorf("list projected accounts: %w", err)
	}
	deletedIDs, err := s.store.ListDeletedAccountIDsByUsers(ctx, owners...)
	if err != nil {
		return nil, fmt.Errorf("list deleted accounts: %w", err)
	}

	// Soft-deleted rows are reported, never backfilled back to life.
	res := &UserResult{
		UserID:              userID,
		PlatformUserID:      platformUserID,
		APICount:            len(uniq(apiIDs)),
		ProjectedCount:      len(uniq(localIDs)),
		MissingInProjection: difference(difference(apiIDs, localIDs), deletedIDs),
		MissingInAPI:        difference(localIDs, apiIDs),
		DeletedInProjection: intersect(apiIDs, deletedIDs),
	}

	for _, id := range res.MissingInProjection {
		acc, err := s.api.GetAccount(ctx, id)
		if err != nil {
			return nil, &UpstreamError{Op: "get account " + id, Err: err}
		}
		if err := s.backfill.BackfillAccount(ctx, acc, platformUserID); err != nil {
			log.Warnf("[Reconcile] backfill of account %s failed: %v", id, err)
			res.BackfillErrors = append(res.BackfillErrors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		res.Backfilled++
	}
	return res, nil
}

// ReconcileAccount reports upstream and local fields side by side. It never
// writes.
func (s *Service) ReconcileAccount(ctx context.Context, accountID string) (*AccountResult, error) {
	acc, err := s.api.GetAccount(ctx, accountID)
	if err != nil {
		return nil, &UpstreamError{Op: "get account " + accountID, Err: err}
	}

	res := &AccountResult{
		AccountID: accountID,
		API: AccountSnapshot{
			Status:            webhook.NormalizeEnumValue(acc.Status),
			TradingPermission: webhook.NormalizeEnumValue(acc.TradingPermission),
			Enabled:           acc.Enabled,
			RuleID:            acc.RuleID.Ptr(),
			RuleName:          acc.RuleName,
		},
		Mismatches: []string{},
	}

	local, err := s.store.GetAccount(ctx, accountID)
	switch {
	case errors.Is(err, projection.ErrNotFound):
		res.Mismatches = append(res.Mismatches, "missing_in_projection")
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("load projected account: %w", err)
	}

	enabled := local.Enabled
	res.Local = &AccountSnapshot{
		Status:            local.Status,
		TradingPermission: local.TradingPermission,
		Enabled:           &enabled,
		RuleID:            local.RuleID,
		RuleName:          local.RuleName,
		IsDeleted:         local.IsDeleted,
	}
	res.Mismatches = compare(res.API, *res.Local)
	return res, nil
}

func (s *Service) resolvePlatformUserID(ctx context.Context, userID string) (string, error) {
	pu, err := s.store.FindPlatformUserByExternalID(ctx, userID)
	switch {
	case errors.Is(err, projection.ErrNotFound):
		return userID, nil
	case err != nil:
		return "", fmt.Errorf("resolve platform user: %w", err)
	}
	return pu.VolumetricaUserID, nil
}

func compare(api, local AccountSnapshot) []string {
	out := []string{}
	if !equalPtr(api.Status, local.Status) {
		out = append(out, "status")
	}
	if !equalPtr(api.TradingPermission, local.TradingPermission) {
		out = append(out, "tradingPermission")
	}
	if !equalPtr(api.Enabled, local.Enabled) {
		out = append(out, "enabled")
	}
	if !equalPtr(api.RuleID, local.RuleID) {
		out = append(out, "ruleId")
	}
	if api.RuleName != local.RuleName {
		out = append(out, "ruleName")
	}
	if local.IsDeleted {
		out = append(out, "deleted_in_projection")
	}
	return out
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// difference returns the sorted ids in a that are not in b.
func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, id := range b {
		exclude[id] = struct{}{}
	}
	out := []string{}
	for _, id := range uniq(a) {
		if _, ok := exclude[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// intersect returns the sorted ids present in both a and b.
func intersect(a, b []string) []string {
	return difference(a, difference(a, b))
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

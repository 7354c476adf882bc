package projection

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
	"github.com/ManuelReschke/PropSync/internal/pkg/webhook"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	return NewService(NewRepository(db)), db
}

func envelope(t *testing.T, raw string) webhook.Envelope {
	t.Helper()
	env, err := webhook.DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	return env
}

func meta(id string) EventMeta {
	return EventMeta{EventID: id, ReceivedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

const fullPayload = `{
	"category": "TradingAccount=1",
	"event": "Updated=1",
	"accountId": "ACC-1",
	"userId": "U-1",
	"tradingAccount": {
		"accountId": "ACC-1",
		"userId": "U-1",
		"status": "Funded=2",
		"tradingPermission": 1,
		"enabled": true,
		"ruleId": 14,
		"ruleName": "50K Eval",
		"endDate": "2025-12-31T00:00:00Z",
		"snapshot": {"balance": 50250.5, "equity": 50100}
	},
	"subscription": {"subscriptionId": "SUB-1", "status": "Active=1", "platform": 3, "dataFeeds": ["CME"], "activationDate": "2025-01-01"},
	"tradingPosition": [
		{"contractId": 10, "symbol": "ESM5", "entryDate": "2025-05-01T09:00:00Z", "price": 5300.25, "quantity": 2, "dailyPl": 125, "openPl": 40.5},
		{"positionId": 991, "contractId": 11, "symbol": "NQM5", "quantity": -1}
	],
	"tradeReport": {"tradeId": "T-1", "contractId": 10, "symbol": "ESM5", "quantity": 1, "pl": 787.5, "commissionPaid": 9},
	"organizationUser": {"userId": "U-1", "externalId": "local-7", "email": "trader@example.com", "status": "Active=1"}
}`

func TestApply_FullPayload(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	res := svc.Apply(ctx, envelope(t, fullPayload), meta("evt-1"))
	require.Empty(t, res.Errors)
	assert.True(t, res.OK())
	assert.ElementsMatch(t, []string{UpdateAccounts, UpdateSubscriptions, UpdatePositions, UpdateTrades, UpdatePlatformUsers}, res.Updates)

	acc, err := svc.repo.GetAccount(ctx, "ACC-1")
	require.NoError(t, err)
	assert.Equal(t, "U-1", *acc.UserID)
	assert.Equal(t, "2", *acc.Status)
	assert.Equal(t, "1", *acc.TradingPermission)
	assert.True(t, acc.Enabled)
	assert.Equal(t, "14", *acc.RuleID)
	assert.Equal(t, "50K Eval", acc.RuleName)
	assert.JSONEq(t, `{"balance": 50250.5, "equity": 50100}`, acc.SnapshotJSON)
	assert.Equal(t, "evt-1", *acc.LastEventID)
	assert.False(t, acc.IsDeleted)
	require.NotNil(t, acc.EndDate)
	assert.Equal(t, 2025, acc.EndDate.Year())

	var sub models.TradingSubscription
	require.NoError(t, db.Where("subscription_id = ?", "SUB-1").First(&sub).Error)
	assert.Equal(t, "1", *sub.Status)
	assert.Equal(t, "3", *sub.Platform)
	assert.Equal(t, "ACC-1", *sub.AccountID, "falls back to the top-level account id")
	assert.JSONEq(t, `["CME"]`, sub.DataFeedsJSON)

	var positions []models.TradingPosition
	require.NoError(t, db.Order("position_key").Find(&positions).Error)
	require.Len(t, positions, 2)
	assert.Equal(t, "pos:991", positions[0].PositionKey)
	assert.Equal(t, "pos:ACC-1:10:ESM5:2025-05-01T09:00:00Z", positions[1].PositionKey)
	assert.Equal(t, "5300.25", positions[1].Price.Decimal.String())

	var trade models.TradingTrade
	require.NoError(t, db.Where("trade_key = ?", "trade:T-1").First(&trade).Error)
	assert.Equal(t, "778.5", trade.NetPL().String())

	var user models.PlatformUser
	require.NoError(t, db.Where("volumetrica_user_id = ?", "U-1").First(&user).Error)
	assert.Equal(t, "local-7", *user.ExternalID)
	assert.Equal(t, "1", *user.Status)
}

func TestApply_IsIdempotent(t *testing.T) {
	svc, db := newService(t)
	env := envelope(t, fullPayload)

	first := svc.Apply(context.Background(), env, meta("evt-1"))
	second := svc.Apply(context.Background(), env, meta("evt-1"))
	require.Empty(t, first.Errors)
	require.Empty(t, second.Errors)

	assert.Equal(t, int64(1), count(t, db, &models.TradingAccount{}))
	assert.Equal(t, int64(1), count(t, db, &models.TradingSubscription{}))
	assert.Equal(t, int64(2), count(t, db, &models.TradingPosition{}))
	assert.Equal(t, int64(1), count(t, db, &models.TradingTrade{}))
	assert.Equal(t, int64(1), count(t, db, &models.PlatformUser{}))
}

func TestApply_PartialProjection(t *testing.T) {
	svc, db := newService(t)
	env := envelope(t, `{
		"accountId": "ACC-2",
		"tradingAccount": {"accountId": "ACC-2", "status": "Active=1", "enabled": true},
		"tradeReport": [{"tradeId": "T-bad", "quantity": "abc"}, {"tradeId": "T-ok", "pl": 10}]
	}`)

	res := svc.Apply(context.Background(), env, meta("evt-2"))
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "tradeReport: [0]")
	assert.Contains(t, res.Updates, UpdateAccounts)
	assert.Contains(t, res.Updates, UpdateTrades)
	assert.False(t, res.OK())

	_, err := svc.repo.GetAccount(context.Background(), "ACC-2")
	require.NoError(t, err, "account must be committed despite the trade failure")
	assert.Equal(t, int64(1), count(t, db, &models.TradingTrade{}))
}

func TestApply_PositionWithoutIDIsStable(t *testing.T) {
	svc, db := newService(t)
	first := `{"accountId":"ACC-3","tradingPortfolio":[{"contractId":7,"symbol":"CLN5","entryDate":"2025-05-01T09:00:00Z","openPl":10}]}`
	second := `{"accountId":"ACC-3","tradingPortfolio":{"contractId":7,"symbol":"CLN5","entryDate":"2025-05-01T09:00:00Z","openPl":-35.25}}`

	require.Empty(t, svc.Apply(context.Background(), envelope(t, first), meta("evt-a")).Errors)
	require.Empty(t, svc.Apply(context.Background(), envelope(t, second), meta("evt-b")).Errors)

	var positions []models.TradingPosition
	require.NoError(t, db.Find(&positions).Error)
	require.Len(t, positions, 1)
	assert.Equal(t, "-35.25", positions[0].OpenPL.Decimal.String())
	assert.Equal(t, "evt-b", *positions[0].LastEventID)
}

func TestApply_PositionPrecedence(t *testing.T) {
	svc, db := newService(t)
	env := envelope(t, `{"accountId":"ACC-4","tradingPosition":{"positionId":1},"tradingPortfolio":[{"positionId":2},{"positionId":3}]}`)

	res := svc.Apply(context.Background(), env, meta("evt-p"))
	require.Empty(t, res.Errors)

	var keys []string
	require.NoError(t, db.Model(&models.TradingPosition{}).Pluck("position_key", &keys).Error)
	assert.Equal(t, []string{"pos:1"}, keys)
}

func TestApply_PlaceholderNeverOverwrites(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res := svc.Apply(ctx, envelope(t, `{"accountId":"ACC-5","userId":"U-5"}`), meta("evt-p1"))
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{UpdateAccounts}, res.Updates)

	acc, err := svc.repo.GetAccount(ctx, "ACC-5")
	require.NoError(t, err)
	assert.Equal(t, "U-5", *acc.UserID)
	assert.JSONEq(t, `{"accountId":"ACC-5","userId":"U-5"}`, acc.RawJSON)

	require.Empty(t, svc.Apply(ctx, envelope(t, `{"accountId":"ACC-5","tradingAccount":{"status":"Funded=2","enabled":true}}`), meta("evt-p2")).Errors)
	res = svc.Apply(ctx, envelope(t, `{"accountId":"ACC-5"}`), meta("evt-p3"))
	assert.Empty(t, res.Updates)

	acc, err = svc.repo.GetAccount(ctx, "ACC-5")
	require.NoError(t, err)
	assert.Equal(t, "2", *acc.Status)
	assert.Equal(t, "evt-p2", *acc.LastEventID)
}

func TestApply_HealsMissingUserLink(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.Empty(t, svc.Apply(ctx, envelope(t, `{"tradingAccount":{"accountId":"ACC-6","status":"Active=1","ruleName":"100K"}}`), meta("evt-h1")).Errors)
	acc, err := svc.repo.GetAccount(ctx, "ACC-6")
	require.NoError(t, err)
	require.Nil(t, acc.UserID)

	res := svc.Apply(ctx, envelope(t, `{"accountId":"ACC-6","userId":"U-6","tradeReport":{"tradeId":"T-6"}}`), meta("evt-h2"))
	require.Empty(t, res.Errors)
	assert.Contains(t, res.Updates, UpdateAccounts)

	acc, err = svc.repo.GetAccount(ctx, "ACC-6")
	require.NoError(t, err)
	require.NotNil(t, acc.UserID)
	assert.Equal(t, "U-6", *acc.UserID)
	assert.Equal(t, "100K", acc.RuleName)
	assert.Equal(t, "1", *acc.Status)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(acc.RawJSON), &raw))
	assert.Equal(t, "U-6", raw["userId"])
	assert.Equal(t, map[string]any{"userId": "U-6"}, raw["user"])
	assert.Equal(t, "100K", raw["ruleName"])

	// an owner that is already set is left alone
	res = svc.Apply(ctx, envelope(t, `{"accountId":"ACC-6","userId":"U-other"}`), meta("evt-h3"))
	assert.Empty(t, res.Updates)
	acc, err = svc.repo.GetAccount(ctx, "ACC-6")
	require.NoError(t, err)
	assert.Equal(t, "U-6", *acc.UserID)
}

func TestApply_SoftDelete(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.Empty(t, svc.Apply(ctx, envelope(t, fullPayload), meta("evt-1")).Errors)
	deleted := `{"event":"Deleted=2","accountId":"ACC-1","tradingAccount":{"accountId":"ACC-1","userId":"U-1","enabled":false},"subscription":{"subscriptionId":"SUB-1"}}`
	require.Empty(t, svc.Apply(ctx, envelope(t, deleted), meta("evt-del")).Errors)

	acc, err := svc.repo.GetAccount(ctx, "ACC-1")
	require.NoError(t, err)
	assert.True(t, acc.IsDeleted)
	require.NotNil(t, acc.DeletedAt)
	assert.Equal(t, "evt-del", *acc.LastEventID)

	var sub models.TradingSubscription
	require.NoError(t, db.Where("subscription_id = ?", "SUB-1").First(&sub).Error)
	assert.True(t, sub.IsDeleted)

	ids, err := svc.repo.ListAccountIDsByUsers(ctx, "U-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	deletedIDs, err := svc.repo.ListDeletedAccountIDsByUsers(ctx, "U-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC-1"}, deletedIDs)
}

func TestApply_MissingIdentifiers(t *testing.T) {
	svc, _ := newService(t)
	res := svc.Apply(context.Background(), envelope(t, `{"tradingAccount":{"status":1},"subscription":{},"organizationUser":{"email":"x@example.com"}}`), meta("evt-m"))

	assert.Empty(t, res.Updates)
	assert.Equal(t, []string{
		"tradingAccount: accountId is missing",
		"subscription: subscriptionId is missing",
		"organizationUser: userId is missing",
	}, res.Errors)
}

type panickingRepo struct {
	Repository
}

func (panickingRepo) UpsertSubscription(context.Context, *models.TradingSubscription) error {
	panic("boom")
}

func TestApply_PanicIsIsolated(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(panickingRepo{Repository: NewRepository(db)})

	res := svc.Apply(context.Background(), envelope(t, fullPayload), meta("evt-1"))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "subscription: panic: boom", res.Errors[0])
	assert.Contains(t, res.Updates, UpdateTrades)
	assert.NotContains(t, res.Updates, UpdateSubscriptions)
}

func TestBackfillAccount(t *testing.T) {
	svc, _ := newService(t)
	acc, err := volumetrica.DecodeAccount([]byte(`{"accountId":"ACC-9","userId":"U-9","status":"Funded=2"}`))
	require.NoError(t, err)
	require.NoError(t, svc.BackfillAccount(context.Background(), acc, "fallback"))

	row, err := svc.repo.GetAccount(context.Background(), "ACC-9")
	require.NoError(t, err)
	assert.Nil(t, row.LastEventID)
	assert.Equal(t, "U-9", *row.UserID)

	ownerless, err := volumetrica.DecodeAccount([]byte(`{"accountId":"ACC-10"}`))
	require.NoError(t, err)
	require.NoError(t, svc.BackfillAccount(context.Background(), ownerless, "U-10"))

	row, err = svc.repo.GetAccount(context.Background(), "ACC-10")
	require.NoError(t, err)
	assert.Equal(t, "U-10", *row.UserID)

	assert.Error(t, svc.BackfillAccount(context.Background(), &volumetrica.Account{}, "U-10"))
}

func TestRepository_Lineage(t *testing.T) {
	svc, _ := newService(t)
	require.Empty(t, svc.Apply(context.Background(), envelope(t, fullPayload), meta("evt-1")).Errors)

	lineage, err := svc.repo.FindByLastEventID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Len(t, lineage.Accounts, 1)
	assert.Len(t, lineage.Subscriptions, 1)
	assert.Len(t, lineage.Positions, 2)
	assert.Len(t, lineage.Trades, 1)
	assert.Len(t, lineage.PlatformUsers, 1)
}

func TestRecordFromAdminCalls(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.Empty(t, svc.Apply(ctx, envelope(t, fullPayload), meta("evt-1")).Errors)

	sub, err := volumetrica.DecodeSubscription([]byte(`{"subscriptionId":"SUB-1","userId":"U-1","status":"Inactive=0"}`))
	require.NoError(t, err)
	require.NoError(t, svc.RecordSubscription(ctx, sub))

	var storedSub models.TradingSubscription
	require.NoError(t, db.Where("subscription_id = ?", "SUB-1").First(&storedSub).Error)
	assert.Equal(t, "0", *storedSub.Status)
	assert.Nil(t, storedSub.LastEventID)

	user, err := volumetrica.DecodeUser([]byte(`{"userId":"U-2","externalId":"local-8","email":"b@example.com"}`))
	require.NoError(t, err)
	require.NoError(t, svc.RecordPlatformUser(ctx, user))

	found, err := svc.repo.FindPlatformUserByExternalID(ctx, "local-8")
	require.NoError(t, err)
	assert.Equal(t, "U-2", found.VolumetricaUserID)

	assert.Error(t, svc.RecordSubscription(ctx, &volumetrica.Subscription{}))
	assert.Error(t, svc.RecordPlatformUser(ctx, &volumetrica.User{}))
}

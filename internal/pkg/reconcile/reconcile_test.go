package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/PropSync/internal/pkg/projection"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

type fakeAPI struct {
	accounts map[string]volumetrica.Account
	byUser   map[string][]string
	listErr  error
	getErr   error

	listCalls []string
	getCalls  []string
}

func (f *fakeAPI) GetAccount(_ context.Context, id string) (*volumetrica.Account, error) {
	f.getCalls = append(f.getCalls, id)
	if f.getErr != nil {
		return nil, f.getErr
	}
	acc, ok := f.accounts[id]
	if !ok {
		return nil, &volumetrica.APIError{StatusCode: 404}
	}
	return &acc, nil
}

func (f *fakeAPI) ListUserAccounts(_ context.Context, userID string) ([]volumetrica.Account, error) {
	f.listCalls = append(f.listCalls, userID)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []volumetrica.Account
	for _, id := range f.byUser[userID] {
		out = append(out, f.accounts[id])
	}
	return out, nil
}

type recorded struct {
	entries []audit.Entry
}

func (r *recorded) Record(_ context.Context, e audit.Entry) { r.entries = append(r.entries, e) }

func setup(t *testing.T, api *fakeAPI) (*Service, *gorm.DB, *recorded) {
	t.Helper()
	db := dbtest.Open(t)
	repo := projection.NewRepository(db)
	rec := &recorded{}
	return NewService(api, repo, projection.NewService(repo), rec), db, rec
}

func seedAccount(t *testing.T, db *gorm.DB, accountID, userID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.TradingAccount{AccountID: accountID, UserID: &userID}).Error)
}

func upstreamAccount(id, userID string) volumetrica.Account {
	return volumetrica.Account{AccountID: volumetrica.FlexString(id), UserID: volumetrica.FlexString(userID), Status: "Funded=2"}
}

func TestReconcileUser_DiffAndBackfill(t *testing.T) {
	api := &fakeAPI{
		accounts: map[string]volumetrica.Account{
			"A": upstreamAccount("A", "u1"),
			"B": upstreamAccount("B", "u1"),
			"C": upstreamAccount("C", "u1"),
		},
		byUser: map[string][]string{"u1": {"C", "A", "B"}},
	}
	svc, db, rec := setup(t, api)
	for _, id := range []string{"B", "C", "D"} {
		seedAccount(t, db, id, "u1")
	}

	res, err := svc.Run(context.Background(), Request{UserID: "u1"}, "admin-key:abc", "corr-1")
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Nil(t, res.Account)
	assert.Equal(t, []string{"A"}, res.User.MissingInProjection)
	assert.Equal(t, []string{"D"}, res.User.MissingInAPI)
	assert.Equal(t, 1, res.User.Backfilled)
	assert.Equal(t, 3, res.User.APICount)
	assert.Equal(t, 3, res.User.ProjectedCount)
	assert.Equal(t, "u1", res.User.PlatformUserID)
	assert.Equal(t, []string{"A"}, api.getCalls)

	var backfilled models.TradingAccount
	require.NoError(t, db.Where("account_id = ?", "A").First(&backfilled).Error)
	assert.Equal(t, "2", *backfilled.Status)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionReconcileCompleted, rec.entries[0].Action)
	assert.Equal(t, "admin-key:abc", rec.entries[0].Actor)

	again, err := svc.Run(context.Background(), Request{UserID: "u1"}, "admin-key:abc", "corr-2")
	require.NoError(t, err)
	assert.Empty(t, again.User.MissingInProjection)
	assert.Equal(t, []string{"D"}, again.User.MissingInAPI)
	assert.Equal(t, 0, again.User.Backfilled)
}

func TestReconcileUser_ReportsSoftDeletedWithoutRestoring(t *testing.T) {
	api := &fakeAPI{
		accounts: map[string]volumetrica.Account{
			"A": upstreamAccount("A", "u1"),
			"B": upstreamAccount("B", "u1"),
		},
		byUser: map[string][]string{"u1": {"A", "B"}},
	}
	svc, db, rec := setup(t, api)
	seedAccount(t, db, "B", "u1")
	owner := "u1"
	require.NoError(t, db.Create(&models.TradingAccount{AccountID: "A", UserID: &owner, IsDeleted: true}).Error)

	res, err := svc.Run(context.Background(), Request{UserID: "u1"}, "admin-key:abc", "corr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.User.DeletedInProjection)
	assert.Empty(t, res.User.MissingInProjection)
	assert.Empty(t, res.User.MissingInAPI)
	assert.Equal(t, 0, res.User.Backfilled)
	assert.Empty(t, api.getCalls)

	var a models.TradingAccount
	require.NoError(t, db.Where("account_id = ?", "A").First(&a).Error)
	assert.True(t, a.IsDeleted)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, 1, rec.entries[0].Metadata["deletedInProjection"])
}

func TestReconcileUser_ResolvesPlatformUser(t *testing.T) {
	api := &fakeAPI{
		accounts: map[string]volumetrica.Account{"X": {AccountID: "X"}},
		byUser:   map[string][]string{"V-7": {"X"}},
	}
	svc, db, _ := setup(t, api)
	external := "local-7"
	require.NoError(t, db.Create(&models.PlatformUser{VolumetricaUserID: "V-7", ExternalID: &external}).Error)
	seedAccount(t, db, "Y", "local-7")

	res, err := svc.ReconcileUser(context.Background(), "local-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"V-7"}, api.listCalls)
	assert.Equal(t, "V-7", res.PlatformUserID)
	assert.Equal(t, []string{"X"}, res.MissingInProjection)
	assert.Equal(t, []string{"Y"}, res.MissingInAPI)

	var x models.TradingAccount
	require.NoError(t, db.Where("account_id = ?", "X").First(&x).Error)
	assert.Equal(t, "V-7", *x.UserID, "ownerless upstream record is linked to the platform user")
}

func TestRun_UpstreamFailureAborts(t *testing.T) {
	api := &fakeAPI{listErr: &volumetrica.APIError{Method: "GET", Path: "/x", StatusCode: 503}}
	svc, _, rec := setup(t, api)

	res, err := svc.Run(context.Background(), Request{UserID: "u1", AccountID: "A"}, "", "corr-9")
	require.Error(t, err)
	assert.Nil(t, res)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "list user accounts", upstream.Op)
	assert.Empty(t, api.getCalls, "account mode is not attempted after the user mode failed")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionReconcileFailed, rec.entries[0].Action)
	assert.Equal(t, "corr-9", rec.entries[0].CorrelationID)
	assert.Equal(t, "user", rec.entries[0].TargetType)
}

func TestRun_BackfillDetailFailureAborts(t *testing.T) {
	api := &fakeAPI{
		accounts: map[string]volumetrica.Account{"A": upstreamAccount("A", "u1")},
		byUser:   map[string][]string{"u1": {"A"}},
		getErr:   errors.New("connection reset"),
	}
	svc, _, _ := setup(t, api)

	_, err := svc.Run(context.Background(), Request{UserID: "u1"}, "", "")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "get account A", upstream.Op)
}

func TestReconcileAccount(t *testing.T) {
	enabled := true
	api := &fakeAPI{accounts: map[string]volumetrica.Account{
		"A": {AccountID: "A", Status: "Funded=2", TradingPermission: float64(1), Enabled: &enabled, RuleID: "14", RuleName: "50K"},
	}}
	svc, db, _ := setup(t, api)

	res, err := svc.ReconcileAccount(context.Background(), "A")
	require.NoError(t, err)
	assert.Nil(t, res.Local)
	assert.Equal(t, []string{"missing_in_projection"}, res.Mismatches)
	assert.Equal(t, "2", *res.API.Status)

	status, permission, rule := "2", "0", "14"
	require.NoError(t, db.Create(&models.TradingAccount{
		AccountID: "A", Status: &status, TradingPermission: &permission, Enabled: false, RuleID: &rule, RuleName: "50K",
	}).Error)

	res, err = svc.ReconcileAccount(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, res.Local)
	assert.Equal(t, []string{"tradingPermission", "enabled"}, res.Mismatches)

	var count int64
	require.NoError(t, db.Model(&models.TradingAccount{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "account mode never writes")
}

func TestRun_InvalidRequest(t *testing.T) {
	svc, _, rec := setup(t, &fakeAPI{})

	_, err := svc.Run(context.Background(), Request{UserID: "  "}, "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, rec.entries)
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"A"}, difference([]string{"C", "A", "B", "A"}, []string{"B", "C", "D"}))
	assert.Equal(t, []string{}, difference(nil, []string{"B"}))
}

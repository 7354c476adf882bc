package projection

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropSync/app/models"
)

// ErrNotFound is returned when a projected row does not exist.
var ErrNotFound = errors.New("projection not found")

// Repository provides DB operations used by the projection engine and its
// readers.
type Repository interface {
	GetAccount(ctx context.Context, accountID string) (*models.TradingAccount, error)
	UpsertAccount(ctx context.Context, account *models.TradingAccount) error
	InsertAccountIfAbsent(ctx context.Context, account *models.TradingAccount) (bool, error)
	LinkAccountUser(ctx context.Context, accountID, userID string, eventID *string) (bool, error)
	ListAccountIDsByUsers(ctx context.Context, userIDs ...string) ([]string, error)
	ListDeletedAccountIDsByUsers(ctx context.Context, userIDs ...string) ([]string, error)

	UpsertSubscription(ctx context.Context, sub *models.TradingSubscription) error
	UpsertPosition(ctx context.Context, pos *models.TradingPosition) error
	UpsertTrade(ctx context.Context, trade *models.TradingTrade) error
	ListTradesByAccount(ctx context.Context, accountID string, limit int) ([]models.TradingTrade, error)

	UpsertPlatformUser(ctx context.Context, user *models.PlatformUser) error
	FindPlatformUserByExternalID(ctx context.Context, externalID string) (*models.PlatformUser, error)

	FindByLastEventID(ctx context.Context, eventID string) (*Lineage, error)
}

// Lineage lists every projected row whose last write came from one event.
type Lineage struct {
	Accounts      []models.TradingAccount      `json:"accounts"`
	Subscriptions []models.TradingSubscription `json:"subscriptions"`
	Positions     []models.TradingPosition     `json:"positions"`
	Trades        []models.TradingTrade        `json:"trades"`
	PlatformUsers []models.PlatformUser        `json:"platform_users"`
}

var (
	accountReplaceColumns = []string{
		"user_id", "status", "trading_permission", "enabled", "reason", "end_date",
		"rule_id", "rule_name", "account_family_id", "owner_user_id", "snapshot_json",
		"raw_json", "last_event_id", "is_deleted", "deleted_at", "updated_at",
	}
	subscriptionReplaceColumns = []string{
		"user_id", "account_id", "status", "activation_date", "expiration_date",
		"data_feeds_json", "platform", "license_key", "download_url", "raw_json",
		"last_event_id", "is_deleted", "deleted_at", "updated_at",
	}
	positionReplaceColumns = []string{
		"position_id", "account_id", "contract_id", "symbol", "entry_date", "price",
		"quantity", "daily_pl", "open_pl", "raw_json", "last_event_id", "updated_at",
	}
	tradeReplaceColumns = []string{
		"trade_id", "account_id", "contract_id", "symbol", "entry_date", "exit_date",
		"quantity", "open_price", "close_price", "pl", "converted_pl", "commission_paid",
		"raw_json", "last_event_id", "updated_at",
	}
	platformUserReplaceColumns = []string{
		"external_id", "email", "first_name", "last_name", "status", "invite_url",
		"raw_json", "last_event_id", "updated_at",
	}
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a projection repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func upsertOn(key string, columns []string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

func (r *gormRepository) GetAccount(ctx context.Context, accountID string) (*models.TradingAccount, error) {
	var account models.TradingAccount
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) UpsertAccount(ctx context.Context, account *models.TradingAccount) error {
	return r.db.WithContext(ctx).Clauses(upsertOn("account_id", accountReplaceColumns)).Create(account).Error
}

func (r *gormRepository) InsertAccountIfAbsent(ctx context.Context, account *models.TradingAccount) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(account)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// LinkAccountUser attaches userID to an account that has no owner yet. Only
// user_id, raw_json and last_event_id change; the WHERE clause keeps a
// concurrently linked owner intact.
func (r *gormRepository) LinkAccountUser(ctx context.Context, accountID, userID string, eventID *string) (bool, error) {
	account, err := r.GetAccount(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if account.UserID != nil && *account.UserID != "" {
		return false, nil
	}

	updates := map[string]any{
		"user_id":  userID,
		"raw_json": seedRawUser(account.RawJSON, userID),
	}
	if eventID != nil {
		updates["last_event_id"] = *eventID
	}
	tx := r.db.WithContext(ctx).Model(&models.TradingAccount{}).
		Where("account_id = ? AND (user_id IS NULL OR user_id = '')", accountID).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// seedRawUser adds userId and user.userId to a raw account object when they
// are missing, leaving everything else untouched.
func seedRawUser(raw, userID string) string {
	obj := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
			obj = map[string]any{}
		}
	}
	if _, ok := obj["userId"]; !ok {
		obj["userId"] = userID
	}
	if _, ok := obj["user"]; !ok {
		obj["user"] = map[string]any{"userId": userID}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return string(b)
}

func (r *gormRepository) ListAccountIDsByUsers(ctx context.Context, userIDs ...string) ([]string, error) {
	return r.listAccountIDs(ctx, false, userIDs)
}

// ListDeletedAccountIDsByUsers returns the soft-deleted accounts of the users.
func (r *gormRepository) ListDeletedAccountIDsByUsers(ctx context.Context, userIDs ...string) ([]string, error) {
	return r.listAccountIDs(ctx, true, userIDs)
}

func (r *gormRepository) listAccountIDs(ctx context.Context, deleted bool, userIDs []string) ([]string, error) {
	var ids []string
	if len(userIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.TradingAccount{}).
		Where("user_id IN ? AND is_deleted = ?", userIDs, deleted).
		Order("account_id").
		Pluck("account_id", &ids).Error
	return ids, err
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.TradingSubscription) error {
	return r.db.WithContext(ctx).Clauses(upsertOn("subscription_id", subscriptionReplaceColumns)).Create(sub).Error
}

func (r *gormRepository) UpsertPosition(ctx context.Context, pos *models.TradingPosition) error {
	return r.db.WithContext(ctx).Clauses(upsertOn("position_key", positionReplaceColumns)).Create(pos).Error
}

func (r *gormRepository) UpsertTrade(ctx context.Context, trade *models.TradingTrade) error {
	return r.db.WithContext(ctx).Clauses(upsertOn("trade_key", tradeReplaceColumns)).Create(trade).Error
}

func (r *gormRepository) ListTradesByAccount(ctx context.Context, accountID string, limit int) ([]models.TradingTrade, error) {
	var trades []models.TradingTrade
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("exit_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&trades).Error
	return trades, err
}

func (r *gormRepository) UpsertPlatformUser(ctx context.Context, user *models.PlatformUser) error {
	return r.db.WithContext(ctx).Clauses(upsertOn("volumetrica_user_id", platformUserReplaceColumns)).Create(user).Error
}

func (r *gormRepository) FindPlatformUserByExternalID(ctx context.Context, externalID string) (*models.PlatformUser, error) {
	var user models.PlatformUser
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Order("updated_at DESC").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) FindByLastEventID(ctx context.Context, eventID string) (*Lineage, error) {
	db := r.db.WithContext(ctx)
	out := &Lineage{}
	if err := db.Where("last_event_id = ?", eventID).Find(&out.Accounts).Error; err != nil {
		return nil, err
	}
	if err := db.Where("last_event_id = ?", eventID).Find(&out.Subscriptions).Error; err != nil {
		return nil, err
	}
	if err := db.Where("last_event_id = ?", eventID).Find(&out.Positions).Error; err != nil {
		return nil, err
	}
	if err := db.Where("last_event_id = ?", eventID).Find(&out.Trades).Error; err != nil {
		return nil, err
	}
	if err := db.Where("last_event_id = ?", eventID).Find(&out.PlatformUsers).Error; err != nil {
		return nil, err
	}
	return out, nil
}

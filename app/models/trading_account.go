package models

import "time"

// TradingAccount mirrors an upstream trading account. Rows are replaced
// wholesale on every account-shaped event and soft-deleted on delete events.
type TradingAccount struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	AccountID         string     `gorm:"type:varchar(191);not null;index:ux_trading_accounts_account_id,unique" json:"account_id"`
	UserID            *string    `gorm:"type:varchar(191);index" json:"user_id,omitempty"`
	Status            *string    `gorm:"type:varchar(64)" json:"status,omitempty"`
	TradingPermission *string    `gorm:"type:varchar(64)" json:"trading_permission,omitempty"`
	Enabled           bool       `gorm:"not null" json:"enabled"`
	Reason            string     `gorm:"type:text" json:"reason"`
	EndDate           *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	RuleID            *string    `gorm:"type:varchar(191)" json:"rule_id,omitempty"`
	RuleName          string     `gorm:"type:varchar(255)" json:"rule_name"`
	AccountFamilyID   *string    `gorm:"type:varchar(191);index" json:"account_family_id,omitempty"`
	OwnerUserID       *string    `gorm:"type:varchar(191)" json:"owner_user_id,omitempty"`
	SnapshotJSON      string     `gorm:"type:text" json:"snapshot_json"`
	RawJSON           string     `gorm:"type:longtext" json:"raw_json"`
	LastEventID       *string    `gorm:"type:varchar(191);index" json:"last_event_id,omitempty"`
	IsDeleted         bool       `gorm:"not null;index" json:"is_deleted"`
	DeletedAt         *time.Time `gorm:"type:timestamp;default:null" json:"deleted_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

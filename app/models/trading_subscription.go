package models

import "time"

// TradingSubscription mirrors an upstream platform/data-feed subscription.
type TradingSubscription struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_trading_subscriptions_subscription_id,unique" json:"subscription_id"`
	UserID         *string    `gorm:"type:varchar(191);index" json:"user_id,omitempty"`
	AccountID      *string    `gorm:"type:varchar(191);index" json:"account_id,omitempty"`
	Status         *string    `gorm:"type:varchar(64)" json:"status,omitempty"`
	ActivationDate *time.Time `gorm:"type:timestamp;default:null" json:"activation_date,omitempty"`
	ExpirationDate *time.Time `gorm:"type:timestamp;default:null" json:"expiration_date,omitempty"`
	DataFeedsJSON  string     `gorm:"type:text" json:"data_feeds_json"`
	Platform       *string    `gorm:"type:varchar(64)" json:"platform,omitempty"`
	LicenseKey     string     `gorm:"type:varchar(255)" json:"license_key"`
	DownloadURL    string     `gorm:"type:varchar(1024)" json:"download_url"`
	RawJSON        string     `gorm:"type:longtext" json:"raw_json"`
	LastEventID    *string    `gorm:"type:varchar(191);index" json:"last_event_id,omitempty"`
	IsDeleted      bool       `gorm:"not null;index" json:"is_deleted"`
	DeletedAt      *time.Time `gorm:"type:timestamp;default:null" json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

package models

import "time"

// AuditLog is an append-only record of operator and ingestion actions.
type AuditLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Action        string    `gorm:"type:varchar(100);not null;index" json:"action"`
	Actor         string    `gorm:"type:varchar(191);not null;default:'system'" json:"actor"`
	TargetType    string    `gorm:"type:varchar(64);index:idx_audit_logs_target,priority:1" json:"target_type"`
	TargetID      string    `gorm:"type:varchar(191);index:idx_audit_logs_target,priority:2" json:"target_id"`
	CorrelationID string    `gorm:"type:varchar(64);index" json:"correlation_id"`
	MetadataJSON  string    `gorm:"type:text" json:"metadata_json"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// AllModels lists every table managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&WebhookEvent{},
		&TradingAccount{},
		&TradingSubscription{},
		&TradingPosition{},
		&TradingTrade{},
		&PlatformUser{},
		&AuditLog{},
	}
}

package models

import "time"

// WebhookEvent is the append-only ledger row written once per accepted
// delivery. The unique event_id index is the idempotency boundary.
type WebhookEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EventID        string    `gorm:"type:varchar(191);not null;index:ux_webhook_events_event_id,unique" json:"event_id"`
	AuthMode       string    `gorm:"type:varchar(16);not null" json:"auth_mode"`
	SignatureValid bool      `gorm:"not null;index" json:"signature_valid"`
	Category       *string   `gorm:"type:varchar(64);index" json:"category,omitempty"`
	Event          *string   `gorm:"type:varchar(64);index" json:"event,omitempty"`
	AccountID      *string   `gorm:"type:varchar(191);index" json:"account_id,omitempty"`
	UserID         *string   `gorm:"type:varchar(191);index" json:"user_id,omitempty"`
	PayloadJSON    string    `gorm:"type:longtext;not null" json:"payload_json"`
	HeadersJSON    string    `gorm:"type:text" json:"headers_json"`
	CorrelationID  string    `gorm:"type:varchar(64);index" json:"correlation_id"`
	SourceIP       string    `gorm:"type:varchar(64)" json:"source_ip"`
	ReceivedAt     time.Time `gorm:"not null;index" json:"received_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

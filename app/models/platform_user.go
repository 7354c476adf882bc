package models

import "time"

// PlatformUser links an upstream platform user to a local account holder
// through ExternalID.
type PlatformUser struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	VolumetricaUserID string    `gorm:"type:varchar(191);not null;index:ux_platform_users_volumetrica_user_id,unique" json:"volumetrica_user_id"`
	ExternalID        *string   `gorm:"type:varchar(191);index" json:"external_id,omitempty"`
	Email             string    `gorm:"type:varchar(200)" json:"email"`
	FirstName         string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName          string    `gorm:"type:varchar(100)" json:"last_name"`
	Status            *string   `gorm:"type:varchar(64)" json:"status,omitempty"`
	InviteURL         string    `gorm:"type:varchar(1024)" json:"invite_url"`
	RawJSON           string    `gorm:"type:longtext" json:"raw_json"`
	LastEventID       *string   `gorm:"type:varchar(191);index" json:"last_event_id,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

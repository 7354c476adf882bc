package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingPosition is an open position snapshot. Closed positions simply stop
// arriving, so there is no delete flag.
type TradingPosition struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	PositionKey string              `gorm:"type:varchar(255);not null;index:ux_trading_positions_position_key,unique" json:"position_key"`
	PositionID  *string             `gorm:"type:varchar(191)" json:"position_id,omitempty"`
	AccountID   string              `gorm:"type:varchar(191);not null;index" json:"account_id"`
	ContractID  *string             `gorm:"type:varchar(191)" json:"contract_id,omitempty"`
	Symbol      string              `gorm:"type:varchar(64)" json:"symbol"`
	EntryDate   *time.Time          `gorm:"type:timestamp;default:null" json:"entry_date,omitempty"`
	Price       decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"price"`
	Quantity    decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"quantity"`
	DailyPL     decimal.NullDecimal `gorm:"column:daily_pl;type:decimal(20,8)" json:"daily_pl"`
	OpenPL      decimal.NullDecimal `gorm:"column:open_pl;type:decimal(20,8)" json:"open_pl"`
	RawJSON     string              `gorm:"type:longtext" json:"raw_json"`
	LastEventID *string             `gorm:"type:varchar(191);index" json:"last_event_id,omitempty"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingTrade is a closed trade report. Net P&L is derived (see NetPL) and
// never stored.
type TradingTrade struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	TradeKey       string              `gorm:"type:varchar(255);not null;index:ux_trading_trades_trade_key,unique" json:"trade_key"`
	TradeID        *string             `gorm:"type:varchar(191)" json:"trade_id,omitempty"`
	AccountID      string              `gorm:"type:varchar(191);not null;index" json:"account_id"`
	ContractID     *string             `gorm:"type:varchar(191)" json:"contract_id,omitempty"`
	Symbol         string              `gorm:"type:varchar(64)" json:"symbol"`
	EntryDate      *time.Time          `gorm:"type:timestamp;default:null" json:"entry_date,omitempty"`
	ExitDate       *time.Time          `gorm:"type:timestamp;default:null" json:"exit_date,omitempty"`
	Quantity       decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"quantity"`
	OpenPrice      decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"open_price"`
	ClosePrice     decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"close_price"`
	PL             decimal.NullDecimal `gorm:"column:pl;type:decimal(20,8)" json:"pl"`
	ConvertedPL    decimal.NullDecimal `gorm:"column:converted_pl;type:decimal(20,8)" json:"converted_pl"`
	CommissionPaid decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"commission_paid"`
	RawJSON        string              `gorm:"type:longtext" json:"raw_json"`
	LastEventID    *string             `gorm:"type:varchar(191);index" json:"last_event_id,omitempty"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// NetPL returns pl minus commission; missing values count as zero.
func (t *TradingTrade) NetPL() decimal.Decimal {
	return t.PL.Decimal.Sub(t.CommissionPaid.Decimal)
}

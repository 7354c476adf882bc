package projection

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

func TestPositionKey(t *testing.T) {
	withID := &volumetrica.Position{PositionID: "77", AccountID: "A1", ContractID: "C", Symbol: "ES"}
	assert.Equal(t, "pos:77", PositionKey(withID, "A1"))

	noID := &volumetrica.Position{ContractID: "123", Symbol: " NQZ5 ", EntryDate: "2025-01-02T10:00:00Z"}
	assert.Equal(t, "pos:A1:123:NQZ5:2025-01-02T10:00:00Z", PositionKey(noID, "A1"))

	other := *noID
	other.EntryDate = "2025-01-02T10:00:01Z"
	assert.NotEqual(t, PositionKey(noID, "A1"), PositionKey(&other, "A1"))
}

func TestTradeKey(t *testing.T) {
	assert.Equal(t, "trade:T9", TradeKey(&volumetrica.Trade{TradeID: "T9"}, "A1"))

	trade := &volumetrica.Trade{
		ContractID: "5",
		EntryDate:  "2025-01-02T10:00:00Z",
		ExitDate:   "2025-01-02T10:05:00Z",
		Quantity:   decimal.NewNullDecimal(decimal.RequireFromString("2.50")),
	}
	assert.Equal(t, "trade:A1:5:2025-01-02T10:00:00Z:2025-01-02T10:05:00Z:2.5", TradeKey(trade, "A1"))
}

func TestNetPL(t *testing.T) {
	pl := decimal.NewNullDecimal(decimal.RequireFromString("787.5"))
	commission := decimal.NewNullDecimal(decimal.RequireFromString("9"))

	trade := models.TradingTrade{PL: pl, CommissionPaid: commission}
	assert.Equal(t, "778.5", trade.NetPL().String())

	uncharged := models.TradingTrade{PL: pl}
	assert.Equal(t, "787.5", uncharged.NetPL().String())
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "2025-03-01T12:30:00Z", want: "2025-03-01T12:30:00Z"},
		{in: "2025-03-01T14:30:00+02:00", want: "2025-03-01T12:30:00Z"},
		{in: "2025-03-01T12:30:00.123", want: "2025-03-01T12:30:00.123Z"},
		{in: "2025-03-01 12:30:00", want: "2025-03-01T12:30:00Z"},
		{in: "2025-03-01", want: "2025-03-01T00:00:00Z"},
	}
	for _, tt := range tests {
		got := parseTime(tt.in)
		if assert.NotNil(t, got, tt.in) {
			assert.Equal(t, tt.want, got.Format("2006-01-02T15:04:05.999999999Z07:00"))
		}
	}
	assert.Nil(t, parseTime(""))
	assert.Nil(t, parseTime("yesterday"))
}

package projection

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

// PositionKey identifies a position row. A stable upstream id wins; without
// one the row is identified by its full tuple so that repeated snapshots of
// the same open position land on one row.
func PositionKey(p *volumetrica.Position, accountID string) string {
	if id := p.PositionID.String(); id != "" {
		return "pos:" + id
	}
	return "pos:" + strings.Join([]string{
		accountID,
		p.ContractID.String(),
		strings.TrimSpace(p.Symbol),
		strings.TrimSpace(p.EntryDate),
	}, ":")
}

// TradeKey identifies a trade row, with the same stable-id-or-tuple rule.
func TradeKey(t *volumetrica.Trade, accountID string) string {
	if id := t.TradeID.String(); id != "" {
		return "trade:" + id
	}
	return "trade:" + strings.Join([]string{
		accountID,
		t.ContractID.String(),
		strings.TrimSpace(t.EntryDate),
		strings.TrimSpace(t.ExitDate),
		decimalKey(t.Quantity),
	}, ":")
}

func decimalKey(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

package webhook

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

// Envelope is the optional-field view of a webhook body. Each entity block is
// kept raw so that a malformed block only fails its own projection step.
type Envelope struct {
	Category         any                    `json:"category"`
	Event            any                    `json:"event"`
	AccountID        volumetrica.FlexString `json:"accountId"`
	UserID           volumetrica.FlexString `json:"userId"`
	TradingAccount   json.RawMessage        `json:"tradingAccount"`
	Subscription     json.RawMessage        `json:"subscription"`
	TradingPosition  json.RawMessage        `json:"tradingPosition"`
	TradingPortfolio json.RawMessage        `json:"tradingPortfolio"`
	TradeReport      json.RawMessage        `json:"tradeReport"`
	OrganizationUser json.RawMessage        `json:"organizationUser"`
}

// DecodeEnvelope decodes a validated body.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Lifecycle derives the soft-delete state from the event type.
func (e Envelope) Lifecycle() Lifecycle {
	return LifecycleFromEvent(e.Event)
}

// Present reports whether a raw block carries a value.
func Present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Items splits an object-or-array block into its elements.
func Items(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if !Present(trimmed) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return []json.RawMessage{trimmed}, nil
}

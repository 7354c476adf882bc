package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		valid  bool
		errors []string
	}{
		{name: "minimal", body: `{}`, valid: true},
		{
			name:  "full",
			body:  `{"id":"e1","category":"TradingAccount=1","event":2,"accountId":12,"userId":"u1","tradingAccount":{},"subscription":{},"organizationUser":{},"tradingPosition":[{}],"tradingPortfolio":{},"tradeReport":[]}`,
			valid: true,
		},
		{name: "nulls are absent", body: `{"category":null,"tradingAccount":null,"tradeReport":null}`, valid: true},
		{name: "array body", body: `[]`, errors: []string{"payload must be a JSON object"}},
		{name: "null body", body: `null`, errors: []string{"payload must be a JSON object"}},
		{name: "bool category", body: `{"category":true}`, errors: []string{"category must be a string or number"}},
		{name: "object account id", body: `{"accountId":{}}`, errors: []string{"accountId must be a string or number"}},
		{name: "array account", body: `{"tradingAccount":[]}`, errors: []string{"tradingAccount must be an object"}},
		{name: "string trade report", body: `{"tradeReport":"x"}`, errors: []string{"tradeReport must be an object or array"}},
		{name: "scalar in position list", body: `{"tradingPosition":[{},1]}`, errors: []string{"tradingPosition[1] must be an object"}},
		{
			name:   "collects every defect",
			body:   `{"event":[],"subscription":"x","tradingPortfolio":5}`,
			errors: []string{"event must be a string or number", "subscription must be an object", "tradingPortfolio must be an object or array"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePayload(mustDecode(t, tt.body))
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.errors, got.Errors)
		})
	}
}

func TestValidatePayload_DoesNotMutate(t *testing.T) {
	payload := mustDecode(t, `{"tradeReport":[{"pl":1}],"event":"x"}`)
	before := CanonicalEncode(payload)
	ValidatePayload(payload)
	assert.Equal(t, before, CanonicalEncode(payload))
}

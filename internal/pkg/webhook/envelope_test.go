package webhook

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"Deleted=2","accountId":991,"userId":"u-1","tradingAccount":{"accountId":"991"},"tradeReport":null}`))
	require.NoError(t, err)

	assert.Equal(t, volumetrica.FlexString("991"), env.AccountID)
	assert.Equal(t, volumetrica.FlexString("u-1"), env.UserID)
	assert.Equal(t, LifecycleDeleted, env.Lifecycle())
	assert.True(t, Present(env.TradingAccount))
	assert.False(t, Present(env.TradeReport))
	assert.False(t, Present(env.Subscription))
}

func TestItems(t *testing.T) {
	items, err := Items(json.RawMessage(`[{"a":1},{"a":2}]`))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = Items(json.RawMessage(` {"a":1} `))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"a":1}`, string(items[0]))

	items, err = Items(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedactHeaders(t *testing.T) {
	got := RedactHeaders(map[string]string{
		"Content-Type":     "application/json",
		"Authorization":    "Bearer x",
		"X-Webhook-Secret": "s3cret",
		"X-Signature":      "abc",
	}, "x-webhook-secret", "X-Signature")

	assert.Equal(t, map[string]string{
		"content-type":     "application/json",
		"authorization":    "[redacted]",
		"x-webhook-secret": "[redacted]",
		"x-signature":      "[redacted]",
	}, got)
}

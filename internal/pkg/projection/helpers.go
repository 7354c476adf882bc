package projection

import (
	"github.com/goccy/go-json"

	"github.com/ManuelReschke/PropSync/internal/pkg/volumetrica"
	"github.com/ManuelReschke/PropSync/internal/pkg/webhook"
)

func eventIDPtr(meta EventMeta) *string {
	if meta.EventID == "" {
		return nil
	}
	id := meta.EventID
	return &id
}

func firstNonEmpty(values ...volumetrica.FlexString) volumetrica.FlexString {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func rawString(raw json.RawMessage) string {
	if !webhook.Present(raw) {
		return ""
	}
	return string(raw)
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

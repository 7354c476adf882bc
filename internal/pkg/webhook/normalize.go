package webhook

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Lifecycle is the soft-delete state derived from an event type.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// NormalizeEnumValue maps the platform's enum encodings to one string form:
// numbers become their decimal text, "Label=N" becomes "N", any other
// non-empty string is returned trimmed. Everything else yields nil.
func NormalizeEnumValue(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = normalizeEnumString(t)
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case uint64:
		s = strconv.FormatUint(t, 10)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func normalizeEnumString(raw string) string {
	s := strings.TrimSpace(raw)
	if _, tail, found := strings.Cut(s, "="); found {
		if tail = strings.TrimSpace(tail); tail != "" {
			return tail
		}
	}
	return s
}

// enumLabel returns the label half of "Label=N", or the whole trimmed string.
func enumLabel(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	label, _, _ := strings.Cut(strings.TrimSpace(s), "=")
	return strings.TrimSpace(label)
}

// LifecycleFromEvent decides once whether an event type means deletion.
// Only the Deleted label counts; bare numeric codes are shared across the
// platform's enums ("Funded=2") and never imply deletion.
func LifecycleFromEvent(eventType any) Lifecycle {
	if strings.EqualFold(enumLabel(eventType), "deleted") {
		return LifecycleDeleted
	}
	if n := NormalizeEnumValue(eventType); n != nil {
		if strings.EqualFold(*n, "deleted") {
			return LifecycleDeleted
		}
	}
	return LifecycleActive
}

package webhook

import (
	"bytes"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// CanonicalEncode renders v as JSON with object keys sorted at every level.
// Two deep-equal values always produce the same string regardless of the key
// order they were decoded with, which makes the output safe to hash.
func CanonicalEncode(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, k)
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case string:
		writeJSONString(b, t)
	case json.Number:
		b.WriteString(t.String())
	case bool, float64, float32, int, int32, int64, uint, uint32, uint64:
		encoded, _ := json.Marshal(t)
		b.Write(encoded)
	default:
		// Structs, typed maps and raw messages go through a JSON round trip so
		// they hit the generic cases above.
		encoded, err := json.Marshal(t)
		if err != nil {
			b.WriteString("null")
			return
		}
		decoded, err := DecodeJSON(encoded)
		if err != nil {
			b.WriteString("null")
			return
		}
		writeCanonical(b, decoded)
	}
}

func writeJSONString(b *strings.Builder, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	b.Write(bytes.TrimRight(buf.Bytes(), "\n"))
}

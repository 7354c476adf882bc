package webhook

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"
)

// DecodeJSON decodes a request body into generic values. Numbers are kept as
// json.Number so identifiers and money amounts survive without float rounding.
func DecodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after top-level JSON value")
	}
	return v, nil
}

// Lookup walks a dot-delimited path through nested objects.
func Lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range splitPath(path) {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if seg := path[start:i]; seg != "" {
				out = append(out, seg)
			}
			start = i + 1
		}
	}
	return out
}

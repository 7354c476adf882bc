package webhook

import "strings"

const redacted = "[redacted]"

var alwaysRedacted = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
}

// RedactHeaders returns a lower-cased copy of headers with credentials and the
// given extra header names masked.
func RedactHeaders(headers map[string]string, extra ...string) map[string]string {
	mask := make(map[string]struct{}, len(alwaysRedacted)+len(extra))
	for k := range alwaysRedacted {
		mask[k] = struct{}{}
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.ToLower(k)
		if _, ok := mask[key]; ok {
			out[key] = redacted
			continue
		}
		out[key] = v
	}
	return out
}

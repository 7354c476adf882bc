package volumetrica

import "github.com/goccy/go-json"

func decodeForTest(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}

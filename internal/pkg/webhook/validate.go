package webhook

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ValidationResult lists every structural defect found in a payload.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

var (
	scalarFields    = []string{"id", "category", "event", "accountId", "userId"}
	objectFields    = []string{"tradingAccount", "subscription", "organizationUser"}
	objectListField = []string{"tradingPosition", "tradingPortfolio", "tradeReport"}
)

// ValidatePayload checks the decoded body's shape. Fields that are absent or
// null are skipped. It never mutates v.
func ValidatePayload(v any) ValidationResult {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return ValidationResult{Errors: []string{"payload must be a JSON object"}}
	}

	var errs []string
	for _, field := range scalarFields {
		val, present := obj[field]
		if !present || val == nil {
			continue
		}
		if !isStringOrNumber(val) {
			errs = append(errs, fmt.Sprintf("%s must be a string or number", field))
		}
	}
	for _, field := range objectFields {
		val, present := obj[field]
		if !present || val == nil {
			continue
		}
		if _, ok := val.(map[string]any); !ok {
			errs = append(errs, fmt.Sprintf("%s must be an object", field))
		}
	}
	for _, field := range objectListField {
		val, present := obj[field]
		if !present || val == nil {
			continue
		}
		switch t := val.(type) {
		case map[string]any:
		case []any:
			for i, item := range t {
				if _, ok := item.(map[string]any); !ok {
					errs = append(errs, fmt.Sprintf("%s[%d] must be an object", field, i))
				}
			}
		default:
			errs = append(errs, fmt.Sprintf("%s must be an object or array", field))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func isStringOrNumber(v any) bool {
	switch v.(type) {
	case string, json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

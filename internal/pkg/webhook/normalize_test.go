package webhook

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestNormalizeEnumValue(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		in   any
		want *string
	}{
		{in: "Funded=2", want: str("2")},
		{in: 2, want: str("2")},
		{in: float64(2), want: str("2")},
		{in: json.Number("3"), want: str("3")},
		{in: " Active ", want: str("Active")},
		{in: "Label=", want: str("Label=")},
		{in: " Deleted = 2 ", want: str("2")},
		{in: "", want: nil},
		{in: nil, want: nil},
		{in: true, want: nil},
		{in: map[string]any{}, want: nil},
	}
	for _, tt := range tests {
		got := NormalizeEnumValue(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Fatalf("NormalizeEnumValue(%#v) = %q, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Fatalf("NormalizeEnumValue(%#v) = %v, want %q", tt.in, got, *tt.want)
		}
	}
}

func TestLifecycleFromEvent(t *testing.T) {
	tests := []struct {
		in   any
		want Lifecycle
	}{
		{in: "Deleted", want: LifecycleDeleted},
		{in: "deleted", want: LifecycleDeleted},
		{in: "Deleted=2", want: LifecycleDeleted},
		{in: "deleted=7", want: LifecycleDeleted},
		{in: json.Number("2"), want: LifecycleActive},
		{in: float64(2), want: LifecycleActive},
		{in: "2", want: LifecycleActive},
		{in: "Funded=2", want: LifecycleActive},
		{in: "Updated=1", want: LifecycleActive},
		{in: "Created", want: LifecycleActive},
		{in: nil, want: LifecycleActive},
	}
	for _, tt := range tests {
		if got := LifecycleFromEvent(tt.in); got != tt.want {
			t.Fatalf("LifecycleFromEvent(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

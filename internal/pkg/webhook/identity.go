package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	DefaultEventIDPath = "id"
	computedPrefix     = "computed:"
	rawPrefix          = "raw:"
)

// EventIdentity is the resolved ledger key of a delivery.
type EventIdentity struct {
	EventID  string
	Computed bool
}

// ResolveEventID returns the provider id found at path, or a content hash of
// the canonical payload when the path does not lead to a non-empty string.
func ResolveEventID(payload any, path string) EventIdentity {
	if strings.TrimSpace(path) == "" {
		path = DefaultEventIDPath
	}
	if v, ok := Lookup(payload, path); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return EventIdentity{EventID: s}
		}
	}
	return EventIdentity{
		EventID:  computedPrefix + sha256Hex([]byte(CanonicalEncode(payload))),
		Computed: true,
	}
}

// RawEventID identifies a request that was rejected before it could be decoded.
func RawEventID(body []byte) string {
	return rawPrefix + sha256Hex(body)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

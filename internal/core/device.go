package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// DeviceFingerprint is the canonical attribute set collected client-side
// (user agent, screen, timezone, hardware hints, rendering hash). Only the
// canonical hash is ever persisted with a token.
type DeviceFingerprint struct {
	Attributes map[string]string `json:"attributes"`
}

// Canonical renders the attributes as a stable "key=value" list sorted by
// key, so the same device always hashes to the same value regardless of
// attribute order on the wire.
func (f DeviceFingerprint) Canonical() string {
	keys := make([]string, 0, len(f.Attributes))
	for k := range f.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(f.Attributes[k])
	}
	return b.String()
}

// Hash returns the hex-encoded SHA-256 of the canonical attribute set.
func (f DeviceFingerprint) Hash() string {
	sum := sha256.Sum256([]byte(f.Canonical()))
	return hex.EncodeToString(sum[:])
}

// Empty reports whether no attributes were collected.
func (f DeviceFingerprint) Empty() bool {
	return len(f.Attributes) == 0
}

package core

import "time"

// TokenStatus is the lifecycle state of a capability token.
// Transitions are monotonic: Active -> Revoked and Active -> Expired are
// terminal, there is no way back.
type TokenStatus string

const (
	StatusActive  TokenStatus = "active"
	StatusRevoked TokenStatus = "revoked"
	StatusExpired TokenStatus = "expired"
)

// Token is the persisted record of a Limited Proxy Rights grant.
// The record never holds the underlying SaaS credential, only the
// authorization metadata needed to decide whether a proxied request
// is permitted.
type Token struct {
	// JTI is the globally unique token identifier. It is immutable and
	// never reused; revocation and audit lookups key on it.
	JTI string `json:"jti"`

	// Subject is the user/session owner the grant acts on behalf of.
	Subject string `json:"subject"`

	// Service is the target SaaS name (e.g. "shopify").
	Service string `json:"service"`

	// Scopes is the ordered set of permitted (method, url_pattern) pairs.
	// A request is authorized only if at least one scope matches.
	Scopes []Scope `json:"scopes"`

	// Origins is the set of request origins the token may be used from.
	Origins []string `json:"origins"`

	// DeviceFingerprintHash binds the token to the device observed at
	// issuance. Only the hash is persisted, never the raw attributes.
	DeviceFingerprintHash string `json:"device_fingerprint_hash"`

	// Purpose is the free-text reason given at issuance, kept for audit.
	Purpose string `json:"purpose,omitempty"`

	Policy Policy `json:"policy"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// KeyVersion identifies the signing key that covers this token, so
	// key rotation invalidates only future issuance.
	KeyVersion string `json:"key_version"`

	Status TokenStatus `json:"status"`

	// Usage counters, maintained by the token store on every verification.
	Usage UsageCounters `json:"usage"`
}

// UsageCounters tracks how a token has been exercised.
type UsageCounters struct {
	VerifyOK   uint64    `json:"verify_ok"`
	VerifyFail uint64    `json:"verify_fail"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// Scope defines one permitted action class: an HTTP method (or "*") plus a
// URL pattern. Pattern matching is deny-by-default; see the scope package
// for the supported pattern kinds.
type Scope struct {
	// Method is the HTTP verb, or "*" for any.
	Method string `json:"method" yaml:"method"`

	// URLPattern selects the permitted request URLs. The matcher kind
	// (exact, prefix, glob) is derived from the pattern syntax at
	// issuance time.
	URLPattern string `json:"url_pattern" yaml:"url_pattern"`

	// Constraint is an optional expression evaluated against the
	// concrete request (method, path, origin, query). An empty
	// constraint always passes.
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// Policy is attached at issuance time and immutable for the token's lifetime.
type Policy struct {
	// RateLimitRPS is the sustained refill rate of the per-token bucket.
	RateLimitRPS float64 `json:"rate_limit_rps" yaml:"rate_limit_rps"`

	// RateLimitBurst is the bucket capacity.
	RateLimitBurst int `json:"rate_limit_burst" yaml:"rate_limit_burst"`

	// RequireDeviceMatch rejects verifications from devices whose
	// fingerprint hash differs from the one captured at issuance.
	RequireDeviceMatch bool `json:"require_device_match" yaml:"require_device_match"`

	// AllowConcurrent permits overlapping in-flight verifications for
	// the same jti. When false, a per-jti single-flight lock rejects
	// overlap with CONCURRENT_USE_DENIED.
	AllowConcurrent bool `json:"allow_concurrent" yaml:"allow_concurrent"`

	// MaxRequestSize bounds the proxied request body in bytes. Zero
	// means no limit.
	MaxRequestSize int64 `json:"max_request_size" yaml:"max_request_size"`

	// HumanSpeedJitter is advisory pacing metadata for the proxy
	// executor. The verifier returns it untouched and never enforces it.
	HumanSpeedJitter time.Duration `json:"human_speed_jitter" yaml:"human_speed_jitter"`
}

// DefaultPolicy is applied when issuance omits the policy block.
func DefaultPolicy() Policy {
	return Policy{
		RateLimitRPS:       5,
		RateLimitBurst:     10,
		RequireDeviceMatch: true,
		AllowConcurrent:    true,
		MaxRequestSize:     1 << 20,
	}
}

// Expired reports passive expiry. Expiry is a pure function of the clock;
// no background deletion is needed for correctness.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

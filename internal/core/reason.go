package core

// ReasonCode classifies the outcome of a verification. Every verify call
// ends in exactly one of these; failures are ordinary outcomes, not service
// errors.
type ReasonCode string

const (
	ReasonValid ReasonCode = "VALID"

	ReasonMalformedToken      ReasonCode = "MALFORMED_TOKEN"
	ReasonSignatureInvalid    ReasonCode = "SIGNATURE_INVALID"
	ReasonExpired             ReasonCode = "EXPIRED"
	ReasonRevoked             ReasonCode = "REVOKED"
	ReasonOriginMismatch      ReasonCode = "ORIGIN_MISMATCH"
	ReasonDeviceMismatch      ReasonCode = "DEVICE_MISMATCH"
	ReasonScopeMismatch       ReasonCode = "SCOPE_MISMATCH"
	ReasonRateLimited         ReasonCode = "RATE_LIMITED"
	ReasonConcurrentUseDenied ReasonCode = "CONCURRENT_USE_DENIED"
)

// Allowed reports whether the reason represents an ALLOW decision.
func (r ReasonCode) Allowed() bool {
	return r == ReasonValid
}

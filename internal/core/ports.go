package core

import (
	"context"
	"time"
)

// TokenStore persists token records. Tokens are created exclusively by the
// issuer and only ever read by the verifier and enforcer; status changes go
// through the explicit Mark* transitions.
type TokenStore interface {
	// Save records a newly issued token. The jti must not exist yet.
	Save(ctx context.Context, tok *Token) error

	// Get returns the record for a jti, or ErrTokenNotFound.
	Get(ctx context.Context, jti string) (*Token, error)

	// ListActive returns unexpired active tokens, optionally filtered by
	// subject ("" means all).
	ListActive(ctx context.Context, subject string) ([]Token, error)

	// MarkRevoked transitions Active -> Revoked. It reports whether this
	// call performed the transition; repeating it is a no-op returning
	// false, never an error.
	MarkRevoked(ctx context.Context, jti string) (bool, error)

	// MarkExpiredBefore transitions every Active token with
	// expires_at < cutoff to Expired and returns the affected jtis.
	MarkExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// RecordUse updates the usage counters after a verification.
	RecordUse(ctx context.Context, jti string, ok bool, at time.Time) error
}

// RevocationStore is the authoritative low-latency registry of revoked jtis.
// Writes must be immediately visible to subsequent reads across all verifier
// instances; eventual consistency would let a revoked token through.
type RevocationStore interface {
	// Revoke marks the jti revoked. It is idempotent and reports whether
	// the jti was already revoked, so callers can tag duplicate calls in
	// the audit trail.
	Revoke(ctx context.Context, jti, reason string) (already bool, err error)

	// IsRevoked reports whether the jti has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed bool

	// RetryAfter is how long the caller should wait before retrying.
	// Only set when Allowed is false.
	RetryAfter time.Duration

	// Remaining is the rate budget left in the bucket, returned for
	// observability.
	Remaining float64
}

// RateLimiter maintains the per-jti token bucket. A verification attempt
// consumes one unit; bucket state updates must be atomic under concurrent
// verification of the same jti.
type RateLimiter interface {
	Allow(ctx context.Context, jti string, policy Policy) (Decision, error)
}

// FlightLock is the optional per-jti single-flight gate used when a policy
// sets allow_concurrent=false. TryAcquire returns a release func, or ok=false
// when another verification for the jti is already in flight.
type FlightLock interface {
	TryAcquire(jti string) (release func(), ok bool)
}

// Ledger is the append-only, hash-chained audit record. Appends are on the
// critical path: an authorization decision is final only once its event is
// durable.
type Ledger interface {
	Append(ctx context.Context, ev Event) (AuditEntry, error)

	// VerifyChain recomputes hashes over [from, to] (sequence numbers,
	// inclusive; to=0 means the chain tip) and returns the first
	// divergent sequence number, or ok=true when the range is intact.
	VerifyChain(ctx context.Context, from, to uint64) (firstDivergent uint64, ok bool, err error)

	// FindByJTI returns entries for a jti via the secondary index,
	// newest last, without rehashing the chain.
	FindByJTI(ctx context.Context, jti string, limit int) ([]AuditEntry, error)

	// FindByTime returns entries whose event time falls in [from, to].
	FindByTime(ctx context.Context, from, to time.Time, limit int) ([]AuditEntry, error)

	// Recent returns the latest entries, oldest first.
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)

	Close() error
}

// Session is an observed-login session handle as reported by the capture
// driver. The core never sees the credential behind it.
type Session struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Service    string    `json:"service"`
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionDirectory resolves session handles minted by the capture driver.
type SessionDirectory interface {
	// Resolve returns the session for a handle, or ErrSessionInvalid if
	// the handle is unknown or expired.
	Resolve(ctx context.Context, sessionID string) (*Session, error)
}

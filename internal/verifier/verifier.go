// Package verifier decides ALLOW/DENY for proxied requests. The pipeline
// short-circuits on the first failing check and always lands on exactly one
// reason code; every outcome, success or failure, is appended to the audit
// ledger before the decision is returned.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/scope"
	"github.com/operandhq/lpr/internal/signer"
)

// Request describes the concrete proxied request being attempted.
type Request struct {
	Token       string
	Method      string
	URL         string
	Origin      string
	Fingerprint core.DeviceFingerprint

	CorrelationID string
}

// Result is the verification outcome. Reason is always set and Valid mirrors
// it; the remaining fields are populated when known.
type Result struct {
	Valid        bool            `json:"valid"`
	Reason       core.ReasonCode `json:"reason_code"`
	JTI          string          `json:"jti,omitempty"`
	MatchedScope *core.Scope     `json:"matched_scope,omitempty"`

	// RetryAfter is set for RATE_LIMITED outcomes.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// Remaining is the rate budget left after this call, for observability.
	Remaining float64 `json:"remaining,omitempty"`

	// HumanSpeedJitter is the policy's advisory pacing hint, passed
	// through to the proxy executor. Never enforced here.
	HumanSpeedJitter time.Duration `json:"human_speed_jitter,omitempty"`

	// MaxRequestSize is the policy's body limit for the executor to apply.
	MaxRequestSize int64 `json:"max_request_size,omitempty"`
}


// Verifier runs the decision pipeline. It performs no long-running work and
// carries no cancellation of its own; callers apply their own timeouts.
type Verifier struct {
	codec   *signer.Codec
	store   core.TokenStore
	revoked core.RevocationStore
	limiter core.RateLimiter
	flight  core.FlightLock
	ledger  core.Ledger

	now func() time.Time
}

func New(
	codec *signer.Codec,
	store core.TokenStore,
	revoked core.RevocationStore,
	limiter core.RateLimiter,
	flight core.FlightLock,
	ledger core.Ledger,
) *Verifier {
	return &Verifier{
		codec:   codec,
		store:   store,
		revoked: revoked,
		limiter: limiter,
		flight:  flight,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Verify runs the pipeline. A non-nil error means the decision could not be
// made or made durable (registry failure, audit append failure) and the
// caller must not act on any partial result.
func (v *Verifier) Verify(ctx context.Context, req Request) (*Result, error) {
	res, details := v.decide(ctx, req)
	res.Valid = res.Reason.Allowed()

	ev := core.Event{
		Type:          core.EventVerifyFail,
		JTI:           res.JTI,
		Time:          v.now(),
		Reason:        string(res.Reason),
		CorrelationID: req.CorrelationID,
		Details:       details,
	}
	if res.Valid {
		ev.Type = core.EventVerifySuccess
	}
	if _, err := v.ledger.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerAppend, err)
	}

	if res.JTI != "" {
		if err := v.store.RecordUse(ctx, res.JTI, res.Valid, ev.Time); err != nil &&
			!errors.Is(err, core.ErrTokenNotFound) {
			return nil, fmt.Errorf("recording use of %s: %w", res.JTI, err)
		}
	}
	return res, nil
}

// decide runs the ordered checks and produces the outcome plus the audit
// details that go with it.
func (v *Verifier) decide(ctx context.Context, req Request) (*Result, map[string]any) {
	details := map[string]any{
		"method": req.Method,
		"url":    req.URL,
		"origin": req.Origin,
	}

	// 1. signature and key version
	tok, err := v.codec.Parse(req.Token)
	if err != nil {
		if errors.Is(err, signer.ErrMalformed) {
			return &Result{Reason: core.ReasonMalformedToken}, details
		}
		return &Result{Reason: core.ReasonSignatureInvalid}, details
	}
	res := &Result{JTI: tok.JTI}

	// 2. authoritative record: expiry, then revocation. The registry is
	// consulted in addition to the stored status so a revoke is visible
	// to verifications already in flight.
	rec, err := v.store.Get(ctx, tok.JTI)
	if err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			details["cause"] = "unknown jti"
			res.Reason = core.ReasonMalformedToken
			return res, details
		}
		res.Reason = core.ReasonMalformedToken
		details["cause"] = fmt.Sprintf("store lookup failed: %v", err)
		return res, details
	}
	res.HumanSpeedJitter = rec.Policy.HumanSpeedJitter
	res.MaxRequestSize = rec.Policy.MaxRequestSize

	now := v.now()
	if rec.Status == core.StatusExpired || rec.Expired(now) {
		res.Reason = core.ReasonExpired
		return res, details
	}
	if rec.Status == core.StatusRevoked {
		res.Reason = core.ReasonRevoked
		return res, details
	}
	revoked, err := v.revoked.IsRevoked(ctx, tok.JTI)
	if err != nil {
		// fail closed: an unreachable registry must not admit a
		// potentially revoked token
		details["cause"] = fmt.Sprintf("revocation check failed: %v", err)
		res.Reason = core.ReasonRevoked
		return res, details
	}
	if revoked {
		res.Reason = core.ReasonRevoked
		return res, details
	}

	// 3. origin
	if !containsString(rec.Origins, req.Origin) {
		res.Reason = core.ReasonOriginMismatch
		return res, details
	}

	// 4. device binding
	if rec.Policy.RequireDeviceMatch && req.Fingerprint.Hash() != rec.DeviceFingerprintHash {
		res.Reason = core.ReasonDeviceMismatch
		return res, details
	}

	// 5. scope match
	compiled, err := scope.CompileAll(rec.Scopes)
	if err != nil {
		// scopes were validated at issuance; a compile failure here means
		// the record is unusable
		details["cause"] = fmt.Sprintf("scope compile failed: %v", err)
		res.Reason = core.ReasonScopeMismatch
		return res, details
	}
	matched := scope.MatchAny(compiled, scope.Request{
		Method: req.Method,
		URL:    req.URL,
		Origin: req.Origin,
	})
	if matched == nil {
		res.Reason = core.ReasonScopeMismatch
		return res, details
	}
	ms := matched.Scope
	res.MatchedScope = &ms
	details["matched_scope"] = ms.Method + " " + ms.URLPattern

	// 6. policy enforcement: single-flight gate, then the token bucket
	if !rec.Policy.AllowConcurrent {
		release, ok := v.flight.TryAcquire(tok.JTI)
		if !ok {
			res.Reason = core.ReasonConcurrentUseDenied
			return res, details
		}
		defer release()
	}

	decision, err := v.limiter.Allow(ctx, tok.JTI, rec.Policy)
	if err != nil {
		// fail closed on limiter errors as well
		details["cause"] = fmt.Sprintf("rate limiter failed: %v", err)
		res.Reason = core.ReasonRateLimited
		res.RetryAfter = time.Second
		return res, details
	}
	res.Remaining = decision.Remaining
	if !decision.Allowed {
		res.Reason = core.ReasonRateLimited
		res.RetryAfter = decision.RetryAfter
		details["retry_after"] = decision.RetryAfter.String()
		return res, details
	}

	res.Reason = core.ReasonValid
	return res, details
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Package issuer mints capability tokens after an observed login. Issuance
// validates every input up front; a failed request never persists anything.
package issuer

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/scope"
	"github.com/operandhq/lpr/internal/signer"
)

// Request carries the issuance inputs from the HTTP layer.
type Request struct {
	SessionID   string
	Service     string
	Scopes      []core.Scope
	Origins     []string
	TTLSeconds  int64
	Policy      *core.Policy
	Fingerprint core.DeviceFingerprint
	Purpose     string
	Consent     bool

	CorrelationID string
}

// Result is returned to the caller on success.
type Result struct {
	Token     string       `json:"token"`
	JTI       string       `json:"jti"`
	ExpiresAt time.Time    `json:"expires_at"`
	Scopes    []core.Scope `json:"scopes"`
}

// Issuer validates issuance requests, signs the token, persists its record
// and appends the Issue audit entry.
type Issuer struct {
	codec     *signer.Codec
	keys      *signer.KeySet
	store     core.TokenStore
	revoked   core.RevocationStore
	directory core.SessionDirectory
	ledger    core.Ledger
	maxTTL    time.Duration

	now func() time.Time
}

func New(
	codec *signer.Codec,
	keys *signer.KeySet,
	store core.TokenStore,
	revoked core.RevocationStore,
	directory core.SessionDirectory,
	ledger core.Ledger,
	maxTTL time.Duration,
) *Issuer {
	if maxTTL <= 0 {
		maxTTL = 24 * time.Hour
	}
	return &Issuer{
		codec:     codec,
		keys:      keys,
		store:     store,
		revoked:   revoked,
		directory: directory,
		ledger:    ledger,
		maxTTL:    maxTTL,
		now:       time.Now,
	}
}

// Issue runs the full issuance flow. Validation failures surface as
// *core.ValidationError and leave no state behind.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Result, error) {
	if !req.Consent {
		return nil, core.NewValidationError("consent", core.ErrConsentMissing)
	}
	if len(req.Scopes) == 0 {
		return nil, core.NewValidationError("scopes", core.ErrEmptyScopes)
	}
	if len(req.Origins) == 0 {
		return nil, core.NewValidationError("origins", core.ErrEmptyOrigins)
	}
	if req.TTLSeconds <= 0 {
		return nil, core.NewValidationError("ttl_seconds", core.ErrTTLInvalid)
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl > i.maxTTL {
		return nil, core.NewValidationError("ttl_seconds", core.ErrTTLTooLong)
	}

	// compile scopes now so a bad pattern or constraint is an issuance
	// failure, not a verification surprise later
	compiled, err := scope.CompileAll(req.Scopes)
	if err != nil {
		return nil, core.NewValidationError("scopes", err)
	}

	sess, err := i.directory.Resolve(ctx, req.SessionID)
	if err != nil {
		return nil, core.NewValidationError("session_id", core.ErrSessionInvalid)
	}
	if req.Service != "" && sess.Service != req.Service {
		return nil, core.NewValidationError("session_id", core.ErrSessionInvalid)
	}

	now := i.now()
	tok := &core.Token{
		JTI:                   newJTI(now),
		Subject:               sess.Subject,
		Service:               sess.Service,
		Scopes:                normalizedScopes(compiled),
		Origins:               req.Origins,
		DeviceFingerprintHash: req.Fingerprint.Hash(),
		Purpose:               req.Purpose,
		IssuedAt:              now,
		ExpiresAt:             now.Add(ttl),
		KeyVersion:            i.keys.ActiveVersion(),
		Status:                core.StatusActive,
	}
	if req.Policy != nil {
		tok.Policy = *req.Policy
	} else {
		tok.Policy = core.DefaultPolicy()
	}

	signed, err := i.codec.Sign(tok)
	if err != nil {
		return nil, fmt.Errorf("issuing %s: %w", tok.JTI, err)
	}

	if err := i.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("persisting %s: %w", tok.JTI, err)
	}

	if _, err := i.ledger.Append(ctx, core.Event{
		Type:          core.EventIssue,
		JTI:           tok.JTI,
		Subject:       tok.Subject,
		Time:          now,
		CorrelationID: req.CorrelationID,
		Details: map[string]any{
			"service":    tok.Service,
			"scopes":     len(tok.Scopes),
			"origins":    tok.Origins,
			"ttl":        ttl.String(),
			"purpose":    tok.Purpose,
			"session_id": req.SessionID,
		},
	}); err != nil {
		// The grant must not stand without its audit record. Undo it the
		// only monotonic way available: revoke.
		if _, rerr := i.store.MarkRevoked(ctx, tok.JTI); rerr != nil {
			log.Ctx(ctx).Error().Err(rerr).Str("jti", tok.JTI).Msg("failed to void token after audit failure")
		}
		if _, rerr := i.revoked.Revoke(ctx, tok.JTI, "audit append failed at issuance"); rerr != nil {
			log.Ctx(ctx).Error().Err(rerr).Str("jti", tok.JTI).Msg("failed to register void after audit failure")
		}
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerAppend, err)
	}

	return &Result{
		Token:     signed,
		JTI:       tok.JTI,
		ExpiresAt: tok.ExpiresAt,
		Scopes:    tok.Scopes,
	}, nil
}

func normalizedScopes(compiled []*scope.Compiled) []core.Scope {
	out := make([]core.Scope, len(compiled))
	for i, c := range compiled {
		out[i] = c.Scope
	}
	return out
}

// newJTI returns a fresh ULID. Monotonic entropy plus the timestamp prefix
// makes collisions (and hence jti reuse) practically impossible.
func newJTI(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

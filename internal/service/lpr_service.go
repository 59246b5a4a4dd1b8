// Package service orchestrates the LPR operations behind the HTTP surface:
// issuance and verification delegate to their components, revocation and the
// expiry sweep live here. Audit appends are on the critical path throughout:
// a decision without a durable audit record is an error, not a decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/issuer"
	"github.com/operandhq/lpr/internal/obs"
	"github.com/operandhq/lpr/internal/verifier"
)

type LPRService struct {
	issuer   *issuer.Issuer
	verifier *verifier.Verifier
	store    core.TokenStore
	revoked  core.RevocationStore
	ledger   core.Ledger

	now func() time.Time
}

func New(
	iss *issuer.Issuer,
	ver *verifier.Verifier,
	store core.TokenStore,
	revoked core.RevocationStore,
	ledger core.Ledger,
) *LPRService {
	return &LPRService{
		issuer:   iss,
		verifier: ver,
		store:    store,
		revoked:  revoked,
		ledger:   ledger,
		now:      time.Now,
	}
}

// IssueToken mints a new capability token. Validation failures map to 400,
// unknown/expired sessions to 401, audit failures to 500.
func (s *LPRService) IssueToken(ctx context.Context, req issuer.Request) (*issuer.Result, error) {
	res, err := s.issuer.Issue(ctx, req)
	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.Is(err, core.ErrSessionInvalid):
			return nil, httpError(http.StatusUnauthorized, err)
		case errors.As(err, &verr):
			return nil, httpError(http.StatusBadRequest, err)
		case errors.Is(err, core.ErrLedgerAppend):
			return nil, httpError(http.StatusInternalServerError, err)
		default:
			return nil, httpError(http.StatusInternalServerError, err)
		}
	}
	obs.TokenIssued()
	return res, nil
}

// VerifyRequest checks a proxied request against its token. Deny outcomes
// are ordinary results, not errors; only infrastructure failures error out.
func (s *LPRService) VerifyRequest(ctx context.Context, req verifier.Request) (*verifier.Result, error) {
	res, err := s.verifier.Verify(ctx, req)
	if err != nil {
		return nil, httpError(http.StatusInternalServerError, err)
	}
	obs.VerifyOutcome(string(res.Reason))
	return res, nil
}

// RevokeToken marks a jti revoked. The call is idempotent: repeats succeed
// without a second terminal transition, but every physical call appends its
// own audit entry so the trail stays honest about caller behavior; repeats
// are tagged as duplicates.
func (s *LPRService) RevokeToken(ctx context.Context, jti, reason, correlationID string) error {
	if jti == "" {
		return httpError(http.StatusBadRequest, fmt.Errorf("jti is required"))
	}

	if _, err := s.store.Get(ctx, jti); err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			return httpError(http.StatusNotFound, err)
		}
		return httpError(http.StatusInternalServerError, err)
	}

	already, err := s.revoked.Revoke(ctx, jti, reason)
	if err != nil {
		return httpError(http.StatusInternalServerError, fmt.Errorf("revoking %s: %w", jti, err))
	}

	transitioned, err := s.store.MarkRevoked(ctx, jti)
	if err != nil && !errors.Is(err, core.ErrTokenNotFound) {
		return httpError(http.StatusInternalServerError, fmt.Errorf("marking %s revoked: %w", jti, err))
	}

	details := map[string]any{"reason": reason}
	if already || !transitioned {
		details["duplicate"] = true
	}
	if _, err := s.ledger.Append(ctx, core.Event{
		Type:          core.EventRevoke,
		JTI:           jti,
		Time:          s.now(),
		Reason:        reason,
		CorrelationID: correlationID,
		Details:       details,
	}); err != nil {
		return httpError(http.StatusInternalServerError, fmt.Errorf("%w: %v", core.ErrLedgerAppend, err))
	}

	obs.TokenRevoked(already || !transitioned)
	return nil
}

// ListTokens returns active tokens with their usage counters, optionally
// scoped to one subject.
func (s *LPRService) ListTokens(ctx context.Context, subject string) ([]core.Token, error) {
	tokens, err := s.store.ListActive(ctx, subject)
	if err != nil {
		return nil, httpError(http.StatusInternalServerError, err)
	}
	return tokens, nil
}

// SweepExpired transitions overdue Active tokens to Expired and appends one
// ExpireSweep entry naming them. Passive expiry at verify time remains
// authoritative; the sweep only tidies the store and the audit trail.
func (s *LPRService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	swept, err := s.store.MarkExpiredBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired tokens: %w", err)
	}
	if len(swept) == 0 {
		return 0, nil
	}
	if _, err := s.ledger.Append(ctx, core.Event{
		Type: core.EventExpireSweep,
		Time: now,
		Details: map[string]any{
			"count": len(swept),
			"jtis":  swept,
		},
	}); err != nil {
		log.Ctx(ctx).Error().Err(err).Int("count", len(swept)).Msg("failed to audit expiry sweep")
		return len(swept), fmt.Errorf("%w: %v", core.ErrLedgerAppend, err)
	}
	return len(swept), nil
}

// AuditEntries serves the admin audit API: filter by jti, time range, or
// just the most recent entries.
func (s *LPRService) AuditEntries(ctx context.Context, jti string, from, to time.Time, limit int) ([]core.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	switch {
	case jti != "":
		return s.ledger.FindByJTI(ctx, jti, limit)
	case !from.IsZero() || !to.IsZero():
		return s.ledger.FindByTime(ctx, from, to, limit)
	default:
		return s.ledger.Recent(ctx, limit)
	}
}

// VerifyAuditChain recomputes the chain over [from, to] and reports the
// first divergent sequence number, if any.
func (s *LPRService) VerifyAuditChain(ctx context.Context, from, to uint64) (uint64, bool, error) {
	return s.ledger.VerifyChain(ctx, from, to)
}

package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/enforcer"
	"github.com/operandhq/lpr/internal/issuer"
	"github.com/operandhq/lpr/internal/ledger"
	"github.com/operandhq/lpr/internal/revocation"
	"github.com/operandhq/lpr/internal/session"
	"github.com/operandhq/lpr/internal/signer"
	"github.com/operandhq/lpr/internal/store"
	"github.com/operandhq/lpr/internal/verifier"
)

type serviceFixture struct {
	svc    *LPRService
	store  *store.InMemoryTokenStore
	ledger *ledger.Memory
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	keys, err := signer.NewKeySet("v1", map[string][]byte{"v1": []byte("test-secret-test-secret-test-key")})
	if err != nil {
		t.Fatalf("NewKeySet failed: %v", err)
	}
	codec := signer.NewCodec(keys)

	directory := session.NewDirectory()
	directory.Put(core.Session{
		ID:        "sess_ok",
		Subject:   "alice",
		Service:   "shopify",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	tokenStore := store.NewInMemoryTokenStore()
	revoked := revocation.NewMemory()
	led := ledger.NewMemory()

	iss := issuer.New(codec, keys, tokenStore, revoked, directory, led, 24*time.Hour)
	ver := verifier.New(codec, tokenStore, revoked, enforcer.NewMemory(), enforcer.NewSingleFlight(), led)

	return &serviceFixture{
		svc:    New(iss, ver, tokenStore, revoked, led),
		store:  tokenStore,
		ledger: led,
	}
}

func issueRequest() issuer.Request {
	return issuer.Request{
		SessionID:  "sess_ok",
		Service:    "shopify",
		Scopes:     []core.Scope{{Method: "GET", URLPattern: "/admin/products/*"}},
		Origins:    []string{"https://agent.example.com"},
		TTLSeconds: 3600,
		Purpose:    "price monitoring",
		Consent:    true,
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("error %v is not an HTTPError", err)
	}
	return herr.StatusCode
}

func TestIssueTokenStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*issuer.Request)
		wantStatus int
	}{
		{"unknown session", func(r *issuer.Request) { r.SessionID = "sess_nope" }, http.StatusUnauthorized},
		{"missing consent", func(r *issuer.Request) { r.Consent = false }, http.StatusBadRequest},
		{"empty scopes", func(r *issuer.Request) { r.Scopes = nil }, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := issueRequest()
			tt.mutate(&req)

			_, err := f.svc.IssueToken(context.Background(), req)
			if err == nil {
				t.Fatal("IssueToken succeeded, want error")
			}
			if got := statusOf(t, err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestIssueThenVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.IssueToken(ctx, issueRequest())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	vres, err := f.svc.VerifyRequest(ctx, verifier.Request{
		Token:  res.Token,
		Method: "GET",
		URL:    "https://api.shopify.com/admin/products/42",
		Origin: "https://agent.example.com",
	})
	if err != nil {
		t.Fatalf("VerifyRequest failed: %v", err)
	}
	if vres.Reason != core.ReasonValid {
		t.Fatalf("reason = %s, want VALID", vres.Reason)
	}
}

func TestRevokeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.IssueToken(ctx, issueRequest())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if err := f.svc.RevokeToken(ctx, res.JTI, "user request", "corr-1"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	rec, err := f.store.Get(ctx, res.JTI)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Status != core.StatusRevoked {
		t.Errorf("status = %s, want revoked", rec.Status)
	}

	// the revoked token no longer verifies
	vres, err := f.svc.VerifyRequest(ctx, verifier.Request{
		Token:  res.Token,
		Method: "GET",
		URL:    "https://api.shopify.com/admin/products/42",
		Origin: "https://agent.example.com",
	})
	if err != nil {
		t.Fatalf("VerifyRequest failed: %v", err)
	}
	if vres.Reason != core.ReasonRevoked {
		t.Errorf("reason = %s, want REVOKED", vres.Reason)
	}
}

func TestRevokeTokenIsIdempotentButAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.IssueToken(ctx, issueRequest())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if err := f.svc.RevokeToken(ctx, res.JTI, "first", "corr-1"); err != nil {
		t.Fatalf("first RevokeToken failed: %v", err)
	}
	if err := f.svc.RevokeToken(ctx, res.JTI, "second", "corr-2"); err != nil {
		t.Fatalf("repeated RevokeToken failed: %v", err)
	}

	// issue + two revoke entries, the second tagged as a duplicate
	entries, err := f.ledger.FindByJTI(ctx, res.JTI, 0)
	if err != nil {
		t.Fatalf("FindByJTI failed: %v", err)
	}
	var revokes []core.AuditEntry
	for _, e := range entries {
		if e.Event.Type == core.EventRevoke {
			revokes = append(revokes, e)
		}
	}
	if len(revokes) != 2 {
		t.Fatalf("revoke entries = %d, want 2", len(revokes))
	}
	if dup, _ := revokes[0].Event.Details["duplicate"].(bool); dup {
		t.Error("first revoke tagged as duplicate")
	}
	if dup, _ := revokes[1].Event.Details["duplicate"].(bool); !dup {
		t.Error("repeated revoke not tagged as duplicate")
	}
}

func TestRevokeTokenErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.RevokeToken(ctx, "", "r", "")
	if got := statusOf(t, err); got != http.StatusBadRequest {
		t.Errorf("empty jti status = %d, want 400", got)
	}

	err = f.svc.RevokeToken(ctx, "jti-unknown", "r", "")
	if got := statusOf(t, err); got != http.StatusNotFound {
		t.Errorf("unknown jti status = %d, want 404", got)
	}
}

func TestListTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.IssueToken(ctx, issueRequest()); err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := f.svc.IssueToken(ctx, issueRequest()); err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	tokens, err := f.svc.ListTokens(ctx, "alice")
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Errorf("ListTokens returned %d tokens, want 2", len(tokens))
	}

	tokens, err = f.svc.ListTokens(ctx, "bob")
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("ListTokens for bob returned %d tokens, want 0", len(tokens))
	}
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	overdue := &core.Token{
		JTI:       "jti-old",
		Subject:   "alice",
		Service:   "shopify",
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
		Status:    core.StatusActive,
	}
	if err := f.store.Save(ctx, overdue); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := f.svc.IssueToken(ctx, issueRequest()); err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	count, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("swept %d tokens, want 1", count)
	}

	rec, _ := f.store.Get(ctx, "jti-old")
	if rec.Status != core.StatusExpired {
		t.Errorf("status = %s, want expired", rec.Status)
	}

	// exactly one sweep event naming the jti
	var sweeps []core.AuditEntry
	entries, _ := f.ledger.Recent(ctx, 0)
	for _, e := range entries {
		if e.Event.Type == core.EventExpireSweep {
			sweeps = append(sweeps, e)
		}
	}
	if len(sweeps) != 1 {
		t.Fatalf("sweep entries = %d, want 1", len(sweeps))
	}
	if c, _ := sweeps[0].Event.Details["count"].(int); c != 1 {
		t.Errorf("sweep count detail = %v", sweeps[0].Event.Details["count"])
	}

	// nothing left to sweep
	count, err = f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second SweepExpired failed: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep swept %d tokens, want 0", count)
	}
}

func TestAuditEntriesDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.IssueToken(ctx, issueRequest())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := f.svc.IssueToken(ctx, issueRequest()); err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	byJTI, err := f.svc.AuditEntries(ctx, res.JTI, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("AuditEntries by jti failed: %v", err)
	}
	if len(byJTI) != 1 || byJTI[0].Event.JTI != res.JTI {
		t.Errorf("by-jti entries = %+v, want one for %s", byJTI, res.JTI)
	}

	recent, err := f.svc.AuditEntries(ctx, "", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("AuditEntries recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("recent entries = %d, want 2", len(recent))
	}

	byTime, err := f.svc.AuditEntries(ctx, "", time.Now().Add(-time.Minute), time.Now().Add(time.Minute), 0)
	if err != nil {
		t.Fatalf("AuditEntries by time failed: %v", err)
	}
	if len(byTime) != 2 {
		t.Errorf("by-time entries = %d, want 2", len(byTime))
	}
}

func TestVerifyAuditChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.IssueToken(ctx, issueRequest()); err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
	}

	divergent, ok, err := f.svc.VerifyAuditChain(ctx, 0, 0)
	if err != nil {
		t.Fatalf("VerifyAuditChain failed: %v", err)
	}
	if !ok {
		t.Errorf("chain reported divergent at seq %d", divergent)
	}
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/operandhq/lpr/internal/core"
)

func testToken(jti, subject string, expiresAt time.Time) *core.Token {
	return &core.Token{
		JTI:       jti,
		Subject:   subject,
		Service:   "shopify",
		Scopes:    []core.Scope{{Method: "GET", URLPattern: "/x"}},
		Origins:   []string{"https://agent.example.com"},
		IssuedAt:  expiresAt.Add(-time.Hour),
		ExpiresAt: expiresAt,
		Status:    core.StatusActive,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := NewInMemoryTokenStore()
	ctx := context.Background()
	tok := testToken("jti-1", "alice", time.Now().Add(time.Hour))

	if err := s.Save(ctx, tok); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, tok); err == nil {
		t.Error("saving a duplicate jti succeeded")
	}

	got, err := s.Get(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(tok, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	// mutating the returned copy must not touch the stored record
	got.Status = core.StatusRevoked
	again, _ := s.Get(ctx, "jti-1")
	if again.Status != core.StatusActive {
		t.Error("mutation of a returned token leaked into the store")
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTokenNotFound", err)
	}
}

func TestListActive(t *testing.T) {
	s := NewInMemoryTokenStore()
	ctx := context.Background()
	now := time.Now()

	later := testToken("jti-b", "alice", now.Add(time.Hour))
	later.IssuedAt = now.Add(-time.Minute)
	earlier := testToken("jti-a", "alice", now.Add(time.Hour))
	earlier.IssuedAt = now.Add(-time.Hour)
	expired := testToken("jti-c", "alice", now.Add(-time.Minute))
	other := testToken("jti-d", "bob", now.Add(time.Hour))
	revoked := testToken("jti-e", "alice", now.Add(time.Hour))
	revoked.Status = core.StatusRevoked

	for _, tok := range []*core.Token{later, earlier, expired, other, revoked} {
		if err := s.Save(ctx, tok); err != nil {
			t.Fatalf("Save %s failed: %v", tok.JTI, err)
		}
	}

	active, err := s.ListActive(ctx, "alice")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("ListActive returned %d tokens, want 2", len(active))
	}
	if active[0].JTI != "jti-a" || active[1].JTI != "jti-b" {
		t.Errorf("ListActive order = [%s, %s], want issuance order [jti-a, jti-b]",
			active[0].JTI, active[1].JTI)
	}

	all, err := s.ListActive(ctx, "")
	if err != nil {
		t.Fatalf("ListActive(all) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListActive without subject returned %d tokens, want 3", len(all))
	}
}

func TestMarkRevokedIsMonotonic(t *testing.T) {
	s := NewInMemoryTokenStore()
	ctx := context.Background()
	if err := s.Save(ctx, testToken("jti-1", "alice", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	transitioned, err := s.MarkRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("MarkRevoked failed: %v", err)
	}
	if !transitioned {
		t.Error("first MarkRevoked did not transition")
	}

	transitioned, err = s.MarkRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("second MarkRevoked failed: %v", err)
	}
	if transitioned {
		t.Error("second MarkRevoked transitioned again")
	}

	if _, err := s.MarkRevoked(ctx, "missing"); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("MarkRevoked(missing) error = %v, want ErrTokenNotFound", err)
	}
}

func TestMarkExpiredBefore(t *testing.T) {
	s := NewInMemoryTokenStore()
	ctx := context.Background()
	now := time.Now()

	overdueB := testToken("jti-b", "alice", now.Add(-time.Minute))
	overdueA := testToken("jti-a", "alice", now.Add(-time.Hour))
	fresh := testToken("jti-c", "alice", now.Add(time.Hour))
	alreadyRevoked := testToken("jti-d", "alice", now.Add(-time.Minute))
	alreadyRevoked.Status = core.StatusRevoked

	for _, tok := range []*core.Token{overdueB, overdueA, fresh, alreadyRevoked} {
		if err := s.Save(ctx, tok); err != nil {
			t.Fatalf("Save %s failed: %v", tok.JTI, err)
		}
	}

	swept, err := s.MarkExpiredBefore(ctx, now)
	if err != nil {
		t.Fatalf("MarkExpiredBefore failed: %v", err)
	}
	if diff := cmp.Diff([]string{"jti-a", "jti-b"}, swept); diff != "" {
		t.Errorf("swept jtis mismatch (-want +got):\n%s", diff)
	}

	got, _ := s.Get(ctx, "jti-a")
	if got.Status != core.StatusExpired {
		t.Errorf("swept token status = %s, want expired", got.Status)
	}
	// revoked stays revoked: transitions are terminal
	got, _ = s.Get(ctx, "jti-d")
	if got.Status != core.StatusRevoked {
		t.Errorf("revoked token status = %s after sweep, want revoked", got.Status)
	}

	// second sweep finds nothing left
	swept, err = s.MarkExpiredBefore(ctx, now)
	if err != nil {
		t.Fatalf("second MarkExpiredBefore failed: %v", err)
	}
	if len(swept) != 0 {
		t.Errorf("second sweep swept %v, want nothing", swept)
	}
}

func TestRecordUse(t *testing.T) {
	s := NewInMemoryTokenStore()
	ctx := context.Background()
	if err := s.Save(ctx, testToken("jti-1", "alice", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first := time.Now()
	second := first.Add(time.Minute)

	if err := s.RecordUse(ctx, "jti-1", true, second); err != nil {
		t.Fatalf("RecordUse failed: %v", err)
	}
	if err := s.RecordUse(ctx, "jti-1", false, first); err != nil {
		t.Fatalf("RecordUse failed: %v", err)
	}

	got, _ := s.Get(ctx, "jti-1")
	if got.Usage.VerifyOK != 1 || got.Usage.VerifyFail != 1 {
		t.Errorf("usage counters = %+v, want 1 ok / 1 fail", got.Usage)
	}
	// LastUsedAt never moves backwards
	if !got.Usage.LastUsedAt.Equal(second) {
		t.Errorf("LastUsedAt = %v, want %v", got.Usage.LastUsedAt, second)
	}

	if err := s.RecordUse(ctx, "missing", true, first); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("RecordUse(missing) error = %v, want ErrTokenNotFound", err)
	}
}

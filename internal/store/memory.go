// Package store provides TokenStore implementations. The in-memory store
// serves single-instance deployments; multi-instance deployments swap in a
// shared store behind the same port without touching the verifier.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.TokenStore = (*InMemoryTokenStore)(nil)

type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*core.Token
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		tokens: make(map[string]*core.Token),
	}
}

func (s *InMemoryTokenStore) Save(_ context.Context, tok *core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[tok.JTI]; exists {
		return fmt.Errorf("jti %q already exists", tok.JTI)
	}
	cp := *tok
	s.tokens[tok.JTI] = &cp
	return nil
}

func (s *InMemoryTokenStore) Get(_ context.Context, jti string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[jti]
	if !ok {
		return nil, core.ErrTokenNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *InMemoryTokenStore) ListActive(_ context.Context, subject string) ([]core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	active := make([]core.Token, 0)
	for _, tok := range s.tokens {
		if tok.Status != core.StatusActive || tok.Expired(now) {
			continue
		}
		if subject != "" && tok.Subject != subject {
			continue
		}
		active = append(active, *tok)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].IssuedAt.Before(active[j].IssuedAt)
	})
	return active, nil
}

func (s *InMemoryTokenStore) MarkRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[jti]
	if !ok {
		return false, core.ErrTokenNotFound
	}
	if tok.Status != core.StatusActive {
		return false, nil
	}
	tok.Status = core.StatusRevoked
	return true, nil
}

func (s *InMemoryTokenStore) MarkExpiredBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []string
	for jti, tok := range s.tokens {
		if tok.Status == core.StatusActive && tok.ExpiresAt.Before(cutoff) {
			tok.Status = core.StatusExpired
			swept = append(swept, jti)
		}
	}
	sort.Strings(swept)
	return swept, nil
}

func (s *InMemoryTokenStore) RecordUse(_ context.Context, jti string, ok bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, found := s.tokens[jti]
	if !found {
		return core.ErrTokenNotFound
	}
	if ok {
		tok.Usage.VerifyOK++
	} else {
		tok.Usage.VerifyFail++
	}
	if at.After(tok.Usage.LastUsedAt) {
		tok.Usage.LastUsedAt = at
	}
	return nil
}

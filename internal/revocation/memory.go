// Package revocation implements the authoritative registry of revoked jtis.
// Both implementations give strong read-after-write consistency: a revoke is
// visible to every verification that starts after it returns, including ones
// already in flight on other instances when the Redis registry is used.
package revocation

import (
	"context"
	"sync"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.RevocationStore = (*Memory)(nil)

// Memory is the single-instance registry: a mutex-guarded set. Reads after
// a completed Revoke always observe it.
type Memory struct {
	mu      sync.RWMutex
	revoked map[string]string // jti -> reason
}

func NewMemory() *Memory {
	return &Memory{revoked: make(map[string]string)}
}

func (m *Memory) Revoke(_ context.Context, jti, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.revoked[jti]; ok {
		return true, nil
	}
	m.revoked[jti] = reason
	return false, nil
}

func (m *Memory) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.revoked[jti]
	return ok, nil
}

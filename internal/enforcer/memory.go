// Package enforcer applies per-token policy at verification time: the
// token-bucket rate limit and the optional single-flight gate. The in-memory
// limiter serves single-instance deployments; the Redis limiter coordinates
// buckets across instances.
package enforcer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.RateLimiter = (*Memory)(nil)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one rate.Limiter per jti. The limiter's own locking makes
// consumption atomic under concurrent verification of the same token; the
// outer mutex only guards the map.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*bucket)}
}

func (m *Memory) Allow(_ context.Context, jti string, policy core.Policy) (core.Decision, error) {
	if policy.RateLimitRPS <= 0 || policy.RateLimitBurst <= 0 {
		return core.Decision{Allowed: true}, nil
	}

	m.mu.Lock()
	b, ok := m.buckets[jti]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(policy.RateLimitRPS), policy.RateLimitBurst)}
		m.buckets[jti] = b
	}
	b.lastSeen = time.Now()
	m.mu.Unlock()

	res := b.lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		// the bucket is empty; hand the unit back and tell the caller
		// when one will be available
		res.Cancel()
		return core.Decision{
			Allowed:    false,
			RetryAfter: delay,
			Remaining:  b.lim.Tokens(),
		}, nil
	}
	return core.Decision{Allowed: true, Remaining: b.lim.Tokens()}, nil
}

// RemoveIdle drops buckets untouched since the cutoff and returns how many
// were removed. Called by the bucket-gc task to bound memory.
func (m *Memory) RemoveIdle(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for jti, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, jti)
			removed++
		}
	}
	return removed
}

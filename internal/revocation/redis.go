package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.RevocationStore = (*Redis)(nil)

// Redis is the multi-instance registry. Redis writes are immediately visible
// to subsequent reads on the same endpoint, which is what the verifier
// consistency contract requires.
type Redis struct {
	rdb *redis.Client

	// ttl bounds how long revocation marks are kept. It must comfortably
	// exceed the maximum token TTL: once the token itself has expired the
	// mark is redundant, the verifier fails with EXPIRED first.
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, markTTL time.Duration) *Redis {
	if markTTL <= 0 {
		markTTL = 30 * 24 * time.Hour
	}
	return &Redis{rdb: rdb, ttl: markTTL}
}

func key(jti string) string {
	return "lpr:revoked:" + jti
}

func (r *Redis) Revoke(ctx context.Context, jti, reason string) (bool, error) {
	set, err := r.rdb.SetNX(ctx, key(jti), reason, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: marking %s: %w", jti, err)
	}
	// SetNX reports whether the mark was written now; an existing mark
	// means this jti was already revoked.
	return !set, nil
}

func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: checking %s: %w", jti, err)
	}
	return n > 0, nil
}

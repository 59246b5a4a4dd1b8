package enforcer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.RateLimiter = (*Redis)(nil)

// Redis is the multi-instance limiter. The whole read-refill-consume cycle
// runs inside one Lua script, so bucket state updates stay atomic even when
// several verifier instances hit the same jti at once.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1]) -- tokens/sec
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3]) -- ms
local ttl_ms = tonumber(ARGV[4])

local tokens = tonumber(redis.call("HGET", key, "tokens"))
local ts = tonumber(redis.call("HGET", key, "ts"))

if not tokens then tokens = capacity end
if not ts then ts = now end
if now < ts then ts = now end

local elapsed = now - ts
local refill = elapsed * (rate / 1000.0)
tokens = math.min(capacity, tokens + refill)

local allowed = 0
local retry_after_ms = 0
if tokens >= 1.0 then
  allowed = 1
  tokens = tokens - 1.0
else
  if rate > 0 then
    retry_after_ms = math.ceil(((1.0 - tokens) / rate) * 1000)
  else
    retry_after_ms = 60000
  end
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, ttl_ms)
return {allowed, retry_after_ms, tostring(tokens)}
`)

func (r *Redis) Allow(ctx context.Context, jti string, policy core.Policy) (core.Decision, error) {
	if policy.RateLimitRPS <= 0 || policy.RateLimitBurst <= 0 {
		return core.Decision{Allowed: true}, nil
	}

	key := "lpr:bucket:" + jti
	nowMS := time.Now().UTC().UnixMilli()
	ttlMS := bucketTTL(policy.RateLimitRPS, float64(policy.RateLimitBurst)).Milliseconds()

	res, err := tokenBucketScript.Run(ctx, r.rdb, []string{key},
		policy.RateLimitRPS, policy.RateLimitBurst, nowMS, ttlMS).Result()
	if err != nil {
		return core.Decision{}, fmt.Errorf("enforcer: bucket script for %s: %w", jti, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return core.Decision{}, fmt.Errorf("enforcer: unexpected bucket response %T", res)
	}

	allowed, _ := vals[0].(int64)
	retryAfterMS, _ := vals[1].(int64)
	var remaining float64
	if s, ok := vals[2].(string); ok {
		_, _ = fmt.Sscanf(s, "%f", &remaining)
	}

	if allowed == 1 {
		return core.Decision{Allowed: true, Remaining: remaining}, nil
	}
	if retryAfterMS <= 0 {
		retryAfterMS = 1000
	}
	return core.Decision{
		Allowed:    false,
		RetryAfter: time.Duration(retryAfterMS) * time.Millisecond,
		Remaining:  remaining,
	}, nil
}

// bucketTTL keeps bucket state around for roughly two refill-to-full cycles
// so idle buckets expire on their own.
func bucketTTL(ratePerSec, capacity float64) time.Duration {
	const minTTL = 30 * time.Second
	const maxTTL = 1 * time.Hour

	if ratePerSec <= 0 || capacity <= 0 {
		return 2 * time.Minute
	}
	fillSeconds := capacity / ratePerSec
	ttl := time.Duration(math.Ceil(fillSeconds*2.0))*time.Second + 5*time.Second
	if ttl < minTTL {
		return minTTL
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces bucket keys in Redis
const keyPrefix = "ratelimit:tb:"

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2] tokens and
// consumes one token per call. Time is passed in as ARGV[3] (seconds, fractional).
// Returns 1 when the call is allowed, 0 otherwise.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
redis.call('EXPIRE', key, ttl)
return allowed
`)

// Config holds configuration for the limiter.
type Config struct {
	RequestsPerSecond float64
	BurstCapacity     int
	Enabled           bool
}

// Limiter is a Redis-backed token bucket shared by every server instance.
type Limiter struct {
	client redis.Scripter
	config Config
	now    func() time.Time
}

// New creates a limiter. A nil client or a disabled config allows everything.
func New(client redis.Scripter, config Config) *Limiter {
	return &Limiter{client: client, config: config, now: time.Now}
}

// Enabled reports whether Allow can ever deny a call.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Enabled && l.client != nil
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Allow consumes a token from the bucket identified by key.
// Callers should fail open when an error is returned.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}

	now := float64(l.now().UnixMicro()) / 1e6
	res, err := tokenBucket.Run(ctx, l.client, []string{keyPrefix + key},
		l.config.RequestsPerSecond,
		l.config.BurstCapacity,
		now,
		l.bucketTTL(),
	).Int64()
	if err != nil {
		return true, err
	}

	return res == 1, nil
}

// bucketTTL keeps a bucket around long enough to refill completely.
func (l *Limiter) bucketTTL() int {
	ttl := 60
	if l.config.RequestsPerSecond > 0 {
		if full := int(float64(l.config.BurstCapacity)/l.config.RequestsPerSecond) + 1; full > ttl {
			ttl = full
		}
	}
	return ttl
}

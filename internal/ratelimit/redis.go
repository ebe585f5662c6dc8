package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "ratelimit:actor:"
	minBucketTTL   = 2 * time.Minute
)

// tokenBucketScript refills and consumes a bucket atomically.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// RedisLimiter shares buckets between every replica through Redis.
type RedisLimiter struct {
	client        redis.Scripter
	ratePerSecond float64
	burst         int
	ttl           time.Duration
	now           func() time.Time
}

// NewRedisLimiter builds a limiter allowing requestsPerMinute with the given burst.
func NewRedisLimiter(client redis.Scripter, requestsPerMinute, burst int) *RedisLimiter {
	if burst <= 0 {
		burst = 1
	}
	ratePerSecond := float64(requestsPerMinute) / 60.0
	return &RedisLimiter{
		client:        client,
		ratePerSecond: ratePerSecond,
		burst:         burst,
		ttl:           bucketTTL(requestsPerMinute, burst),
		now:           time.Now,
	}
}

// bucketTTL outlives a full refill so an idle key never expires while it is
// still below burst.
func bucketTTL(requestsPerMinute, burst int) time.Duration {
	if requestsPerMinute <= 0 {
		return minBucketTTL
	}
	refillSeconds := (burst*60 + requestsPerMinute - 1) / requestsPerMinute
	return max(minBucketTTL, time.Duration(refillSeconds+1)*time.Second)
}

// Allow fails open: a Redis error admits the request and is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	if l.ratePerSecond <= 0 {
		return unlimited(l.burst), nil
	}
	values, err := tokenBucketScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		l.ratePerSecond, l.burst, l.now().Unix(), int(l.ttl.Seconds()),
	).Int64Slice()
	if err != nil {
		return unlimited(l.burst), err
	}
	return Result{
		Allowed:    values[0] == 1,
		RetryAfter: time.Duration(values[1]) * time.Second,
		Remaining:  int(values[2]),
	}, nil
}

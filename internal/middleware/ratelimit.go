package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/pkg/config"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
	"github.com/kc-reserve/hut-api/pkg/response"
)

// tokenBucketScript refills and takes one token atomically. It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
  local elapsed = math.max(0, now_ms - last_refill)
  local intervals = math.floor(elapsed / interval_ms)
  if intervals > 0 then
    tokens = math.min(capacity, tokens + (intervals * refill_tokens))
    last_refill = last_refill + (intervals * interval_ms)
  end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Bucket takes one token for key.
type Bucket interface {
	Take(ctx context.Context, key string, now time.Time) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

// RedisBucket is a token bucket stored in Redis hashes.
type RedisBucket struct {
	client *redis.Client
	cfg    config.RateLimitConfig
}

// NewRedisBucket constructs a RedisBucket.
func NewRedisBucket(client *redis.Client, cfg config.RateLimitConfig) *RedisBucket {
	return &RedisBucket{client: client, cfg: cfg}
}

// Take implements Bucket.
func (b *RedisBucket) Take(ctx context.Context, key string, now time.Time) (bool, int64, time.Duration, error) {
	args := []interface{}{
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, b.client, []string{key}, args...).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit result: %v", vals)
	}
	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

type rateLimitRecorder interface {
	RecordRateLimited(path string)
}

// RateLimit throttles requests per client IP and route. Limiter failures
// let the request through.
func RateLimit(bucket Bucket, cfg config.RateLimitConfig, metrics rateLimitRecorder, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Enabled || bucket == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		key := strings.Join([]string{prefix, "ip", ip, "route", c.Request.Method + " " + route}, ":")

		allowed, remaining, retryAfter, err := bucket.Take(c.Request.Context(), key, time.Now())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			if metrics != nil {
				metrics.RecordRateLimited(route)
			}
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}

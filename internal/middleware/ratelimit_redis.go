package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/audit"
	"github.com/liwanag/screening-server/internal/config"
)

const (
	rateLimitKeyPrefix = "ratelimit:device:"
	rateLimitWindow    = 60 * time.Second
)

// Sliding-window counter in a sorted set, one member per request.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local remaining = limit - count - 1
local resetAt = now + window

return {1, remaining, resetAt}
`)

type DeviceRateLimiter struct {
	client *redis.Client
}

func NewDeviceRateLimiter(client *redis.Client) *DeviceRateLimiter {
	return &DeviceRateLimiter{client: client}
}

// Check consumes one request slot for the key. Redis failures allow the
// request: a down limiter must not take device ingestion with it.
func (rl *DeviceRateLimiter) Check(ctx context.Context, keyID int64, limit int) (allowed bool, remaining int, resetAt int64) {
	now := time.Now().Unix()
	key := rateLimitKeyPrefix + strconv.FormatInt(keyID, 10)

	result, err := rateLimitScript.Run(ctx, rl.client, []string{key}, now, int64(rateLimitWindow.Seconds()), limit).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Int64("keyId", keyID).Msg("redis rate limit check failed, allowing request")
		return true, limit - 1, now + int64(rateLimitWindow.Seconds())
	}

	if len(result) != 3 {
		log.Warn().Int64("keyId", keyID).Msg("unexpected redis rate limit result")
		return true, limit - 1, now + int64(rateLimitWindow.Seconds())
	}

	return result[0] == 1, int(result[1]), result[2]
}

type DeviceRateLimitMiddleware struct {
	limiter *DeviceRateLimiter
	limit   int
}

func NewDeviceRateLimitMiddleware(redisClient *redis.Client, limit int) *DeviceRateLimitMiddleware {
	if limit <= 0 {
		limit = config.DefaultDeviceRateLimitPerMin
	}
	return &DeviceRateLimitMiddleware{
		limiter: NewDeviceRateLimiter(redisClient),
		limit:   limit,
	}
}

// Handler limits requests per API key. It runs behind DeviceAuthMiddleware;
// unauthenticated requests pass through untouched.
func (m *DeviceRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := GetAPIKey(r.Context())
		if apiKey == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, resetAt := m.limiter.Check(r.Context(), apiKey.ID, m.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				KeyName: apiKey.KeyName,
			})
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

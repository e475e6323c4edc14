package middleware

import (
    "context"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/turf-slot-booking/internal/config"
)

// bucketScript refills a bucket by whole intervals, takes one token if it
// can and reports {ok, tokens left, ms until the next refill}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now, cap, refill, every, ttl =
    tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local b = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(b[1]) or cap
local ts = tonumber(b[2]) or now

if every > 0 and refill > 0 and now > ts then
    local n = math.floor((now - ts) / every)
    tokens = math.min(cap, tokens + n * refill)
    ts = ts + n * every
end

local ok, wait = 0, 0
if tokens >= 1 then
    ok = 1
    tokens = tokens - 1
else
    wait = math.max(0, every - (now - ts))
end

redis.call('HSET', key, 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', key, ttl)
return {ok, tokens, wait}
`)

// verdict is one decision of the limiter.
type verdict struct {
    allowed    bool
    remaining  int64
    retryAfter time.Duration
}

// RetryAfterSeconds rounds up so clients never retry too early.
func (v verdict) retryAfterSeconds() int {
    return int(math.Ceil(v.retryAfter.Seconds()))
}

func parseVerdict(res any) (verdict, bool) {
    arr, ok := res.([]interface{})
    if !ok || len(arr) != 3 {
        return verdict{}, false
    }
    wait := asInt64(arr[2])
    if wait < 0 {
        wait = 0
    }
    return verdict{
        allowed:    asInt64(arr[0]) == 1,
        remaining:  asInt64(arr[1]),
        retryAfter: time.Duration(wait) * time.Millisecond,
    }, true
}

func takeToken(ctx context.Context, rdb redis.Scripter, cfg config.RateLimitConfig, key string, now time.Time) (verdict, error) {
    res, err := bucketScript.Run(ctx, rdb, []string{key},
        now.UnixMilli(),
        cfg.Capacity,
        cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(),
        int64(cfg.TTL/time.Second),
    ).Result()
    if err != nil {
        return verdict{}, err
    }
    v, ok := parseVerdict(res)
    if !ok {
        return verdict{}, redis.Nil
    }
    return v, nil
}

// NewTokenBucket limits requests per key with a token bucket kept in Redis.
// Hold and commit endpoints are where a runaway client hurts other customers
// most, so they are the ones the router wraps.  Redis errors let the request
// through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            v, err := takeToken(c.Request().Context(), rdb, cfg, key, time.Now())
            if err != nil {
                if cfg.Debug {
                    c.Logger().Warnf("ratelimit: key=%s: %v", key, err)
                }
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if v.allowed {
                return next(c)
            }

            secs := v.retryAfterSeconds()
            h.Set("Retry-After", strconv.Itoa(secs))
            return c.JSON(http.StatusTooManyRequests, map[string]any{
                "error":       "too many requests, slow down",
                "kind":        "rate_limited",
                "retryable":   true,
                "retry_after": secs,
            })
        }
    }
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    return 0
}

// rateKeyParts lists the key segments of each strategy.  Unknown strategies
// use every segment.
var rateKeyParts = map[string][]string{
    "ip":         {"ip"},
    "user":       {"user"},
    "route":      {"route"},
    "ip_user":    {"ip", "user"},
    "ip_route":   {"ip", "route"},
    "user_route": {"user", "route"},
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    segments, ok := rateKeyParts[strings.ToLower(cfg.KeyStrategy)]
    if !ok {
        segments = []string{"ip", "user", "route"}
    }

    parts := []string{cfg.Prefix}
    for _, s := range segments {
        switch s {
        case "ip":
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            parts = append(parts, "ip", ip)
        case "user":
            parts = append(parts, "user", callerKey(c))
        case "route":
            parts = append(parts, "route", c.Request().Method+" "+c.Path())
        }
    }
    return strings.Join(parts, ":")
}

// callerKey prefers the verified phone and falls back to the browsing session.
func callerKey(c echo.Context) string {
    if id := IdentityFrom(c); id != nil && id.Phone != "" {
        return id.Phone
    }
    if sid := SessionFrom(c); sid != "" {
        return "session:" + sid
    }
    return "anon"
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// slidingWindowScript applies the same reset-based window as MemoryLimiter
// but against shared counters, so the limit holds across instances.
const slidingWindowScript = `
local window = tonumber(ARGV[1])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "count", "ws")
local count = tonumber(data[1])
local ws = tonumber(data[2])

if count == nil or now >= ws + window then
  count = 1
  ws = now
else
  count = count + 1
end

redis.call("HMSET", KEYS[1], "count", count, "ws", ws)
redis.call("PEXPIRE", KEYS[1], window)

return {count, ws, now}
`

type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
	}
}

func (r *RedisLimiter) Check(ctx context.Context, identifier string, cfg Config) (Result, error) {
	if r == nil || r.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}
	if cfg.Window <= 0 {
		return Result{}, errors.New("rate limiter window must be positive")
	}

	res, err := r.script.Run(
		ctx,
		r.client,
		[]string{cfg.key(identifier)},
		int64(cfg.Window/time.Millisecond),
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 3 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	count := int(castToInt(res[0]))
	windowStart := time.UnixMilli(castToInt(res[1]))
	now := time.UnixMilli(castToInt(res[2]))

	return evaluate(count, windowStart, now, cfg), nil
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}

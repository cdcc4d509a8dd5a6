package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chatlima-server/internal/domain/usagelimit"
)

// Both windows are bumped only when neither has reached its limit; a negative limit is unlimited.
var incrWithinLimitsScript = redis.NewScript(`
local d = tonumber(redis.call("GET", KEYS[1]) or "0")
local m = tonumber(redis.call("GET", KEYS[2]) or "0")
local dl = tonumber(ARGV[1])
local ml = tonumber(ARGV[2])
if (dl >= 0 and d >= dl) or (ml >= 0 and m >= ml) then
  return {0, d, m}
end
d = redis.call("INCR", KEYS[1])
if d == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[3])
end
m = redis.call("INCR", KEYS[2])
if m == 1 then
  redis.call("EXPIRE", KEYS[2], ARGV[4])
end
return {1, d, m}
`)

// UsageCounter keeps daily and monthly message counters in Redis.
type UsageCounter struct {
	redis redis.UniversalClient
}

var _ usagelimit.Counter = (*UsageCounter)(nil)

func NewUsageCounter(rdb redis.UniversalClient) usagelimit.Counter {
	return &UsageCounter{redis: rdb}
}

func dailyKey(userID string, now time.Time) string {
	return fmt.Sprintf("chatlima:usage:%s:d:%s", userID, now.UTC().Format("20060102"))
}

func monthlyKey(userID string, now time.Time) string {
	return fmt.Sprintf("chatlima:usage:%s:m:%s", userID, now.UTC().Format("200601"))
}

func ttlUntil(now, end time.Time) int64 {
	ttl := int64(end.Sub(now).Seconds())
	if ttl < 1 {
		ttl = 1
	}
	return ttl
}

func (c *UsageCounter) IncrementIfAllowed(ctx context.Context, userID string, now time.Time, dailyLimit, monthlyLimit int64) (*usagelimit.CounterResult, error) {
	now = now.UTC()
	y, m, d := now.Date()
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)

	res, err := incrWithinLimitsScript.Run(ctx, c.redis,
		[]string{dailyKey(userID, now), monthlyKey(userID, now)},
		dailyLimit, monthlyLimit, ttlUntil(now, dayEnd), ttlUntil(now, monthEnd),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("usage counter script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("usage counter script: unexpected reply %v", res)
	}
	return &usagelimit.CounterResult{Incremented: res[0] == 1, Daily: res[1], Monthly: res[2]}, nil
}

func (c *UsageCounter) Peek(ctx context.Context, userID string, now time.Time) (int64, int64, error) {
	vals, err := c.redis.MGet(ctx, dailyKey(userID, now), monthlyKey(userID, now)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("usage counter peek: %w", err)
	}
	return toInt64(vals[0]), toInt64(vals[1]), nil
}

func toInt64(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the window, checks the count and records the
// attempt in one step so concurrent callers cannot overshoot the limit.
// It returns {1, 0} when allowed and {0, oldestScore} when refused.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. ARGV[1])
if redis.call('ZCARD', key) >= tonumber(ARGV[3]) then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest == 0 then
		return {0, -1}
	end
	return {0, tonumber(oldest[2])}
end
redis.call('ZADD', key, ARGV[2], ARGV[5])
redis.call('PEXPIRE', key, ARGV[4])
return {1, 0}
`)

// SlidingWindow limits attempts per identifier over a trailing window, using
// one sorted set per identifier scored by attempt time in microseconds.
type SlidingWindow struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

func NewSlidingWindow(client *redis.Client, keyPrefix string, limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{client: client, keyPrefix: keyPrefix, limit: limit, window: window}
}

// Allow records an attempt for identifier at now if fewer than limit attempts
// fall inside the window. When the attempt is refused, retryAfter is the time
// until the oldest attempt leaves the window.
func (w *SlidingWindow) Allow(ctx context.Context, identifier string, now time.Time) (bool, time.Duration, error) {
	if w.window <= 0 || w.limit <= 0 {
		return false, 0, errors.New("rate limit window and limit must be positive")
	}

	res, err := slidingWindowScript.Run(ctx, w.client, []string{w.key(identifier)},
		now.Add(-w.window).UnixMicro(),
		now.UnixMicro(),
		w.limit,
		w.window.Milliseconds(),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis rate window: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis rate window: unexpected reply %v", res)
	}
	if res[0] == 1 {
		return true, 0, nil
	}

	retryAfter := w.window
	if res[1] >= 0 {
		retryAfter = time.UnixMicro(res[1]).Add(w.window).Sub(now)
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}

func (w *SlidingWindow) key(identifier string) string {
	if w.keyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", w.keyPrefix, identifier)
}

package redisbus

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "checkerhub:ratelimit:"

// RateLimiter counts requests in fixed windows shared by every server
// instance.
type RateLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRateLimiter(client redis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow increments the counter for key in the current window and reports
// whether it is still within limit.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	k := windowKey(key, window, l.now())
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

func windowKey(key string, window time.Duration, now time.Time) string {
	bucket := now.UnixNano() / int64(window)
	return rateLimitPrefix + key + ":" + strconv.FormatInt(bucket, 10)
}

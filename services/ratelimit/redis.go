package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/acadmeter/acadmeter/core/user"
)

const keyPrefix = "acadmeter:ratelimit:"

// RedisLimiter is a fixed window limiter backed by Redis counters.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

var _ user.Limiter = (*RedisLimiter)(nil) // interface compliance check

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window}
}

// Allow counts one hit for key and fails with user.ErrRateLimited once the
// window holds more than max hits. The window starts on the first hit.
// INCR and EXPIRE NX run in one MULTI so a counter never outlives its window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	key = keyPrefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "counting rate window hit")
	}
	if count := incr.Val(); count > int64(l.max) {
		return user.ErrRateLimited
	}
	return nil
}

// Noop never limits.
type Noop struct{}

func (Noop) Allow(context.Context, string) error { return nil }

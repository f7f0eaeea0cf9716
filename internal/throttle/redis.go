package throttle

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "quizmaster:login:failures:"

// RedisLimiter keeps failure counters in Redis so they survive restarts
// and are shared between instances.
type RedisLimiter struct {
	client      redis.Cmdable
	maxFailures int
	window      time.Duration
}

func NewRedisLimiter(client redis.Cmdable, maxFailures int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, maxFailures: maxFailures, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.maxFailures <= 0 {
		return true, nil
	}
	n, err := l.client.Get(ctx, keyPrefix+Key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return n < l.maxFailures, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := keyPrefix + Key(key)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	// the window starts at the first failure
	if n == 1 {
		return l.client.Expire(ctx, k, l.window).Err()
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, keyPrefix+Key(key)).Err()
}

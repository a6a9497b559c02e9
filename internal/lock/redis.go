package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-voting/internal/logger"
)

const (
	keyPrefix        = "voting_lock:"
	retryInterval    = 25 * time.Millisecond
	maxRetryInterval = 200 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisLocker holds per-key locks in redis with SETNX and a TTL so a crashed
// holder cannot block a key forever.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
	logger  *logger.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, maxWait: ttl, logger: log}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInterval
	policy.MaxInterval = maxRetryInterval
	policy.MaxElapsedTime = r.maxWait

	try := func() error {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("redis lock %s: %w", key, err))
		}
		if !ok {
			return ErrBusy
		}
		return nil
	}

	if err := backoff.Retry(try, backoff.WithContext(policy, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ErrBusy
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release regardless.
			relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("REDIS", fmt.Sprintf("Failed to release lock %s: %v", redisKey, err))
			}
		})
	}, nil
}

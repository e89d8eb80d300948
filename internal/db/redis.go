package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"receiving-engine/internal/core"
)

const (
	commitLockTTL   = 30 * time.Second
	commitLockRetry = 100 * time.Millisecond
	commitLockWait  = 5 * time.Second
)

// NewRedis connects to the REDIS_ADDR instance. Returns nil without error
// when REDIS_ADDR is unset; commit serialization then falls back to the
// in-process locker.
func NewRedis(ctx context.Context) (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// RedisLocker serializes receipt commits across server instances using
// redislock. It satisfies core.CommitLocker.
type RedisLocker struct {
	locker *redislock.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{locker: redislock.New(client)}
}

// Lock obtains the named lock, retrying briefly before giving up with
// core.ErrLockNotObtained.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, commitLockWait)
	lock, err := l.locker.Obtain(ctx, key, commitLockTTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(commitLockRetry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		cancel()
		return nil, core.ErrLockNotObtained
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.Background())
		cancel()
	}, nil
}

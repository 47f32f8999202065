// Package redis keeps idempotency keys of order placement in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a key and the order it produced are remembered.
const DefaultTTL = 24 * time.Hour

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// IdempotencyStore remembers which order an Idempotency-Key produced.
// Keys are scoped per buyer.
type IdempotencyStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewIdempotencyStore returns a store whose keys expire after ttl.
func NewIdempotencyStore(rdb *goredis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func lockKey(scope, key string) string   { return "idemp:" + scope + ":" + key }
func resultKey(scope, key string) string { return "idemp:map:" + scope + ":" + key }

// TryLock claims key for scope. It returns false when the key was already
// claimed, finished or not.
func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("locking idempotency key: %w", err)
	}
	return ok, nil
}

// Remember stores the order produced under key.
func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, orderID string) error {
	if err := s.rdb.Set(ctx, resultKey(scope, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing idempotency result: %w", err)
	}
	return nil
}

// Recall returns the order stored under key, if any.
func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, resultKey(scope, key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading idempotency result: %w", err)
	}
	return v, true, nil
}

// Release drops the claim on key so that a failed request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := s.rdb.Del(ctx, lockKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}

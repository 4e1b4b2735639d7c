package flowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is the optional remote flow-state backend: a blocking client
// over a pooled connection, speaking the same Store contract as the
// in-process backend so script engines don't care which one is wired in.
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// RedisConfig configures the connection pool behind RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisStore dials addr and verifies connectivity with a PING.
func NewRedisStore(cfg RedisConfig, defaultTTL time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("flowstore: redis connection failed: %w", err)
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &RedisStore{client: client, defaultTTL: defaultTTL}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Get(ctx context.Context, flowID, key string) (json.RawMessage, bool, error) {
	val, err := s.client.Get(ctx, namespacedKey(flowID, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("flowstore: redis get: %w", err)
	}
	return json.RawMessage(val), true, nil
}

func (s *RedisStore) Set(ctx context.Context, flowID, key string, value json.RawMessage) error {
	if err := s.client.Set(ctx, namespacedKey(flowID, key), []byte(value), s.defaultTTL).Err(); err != nil {
		return fmt.Errorf("flowstore: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, flowID, key string) (bool, error) {
	n, err := s.client.Exists(ctx, namespacedKey(flowID, key)).Result()
	if err != nil {
		return false, fmt.Errorf("flowstore: redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, flowID, key string) error {
	if err := s.client.Del(ctx, namespacedKey(flowID, key)).Err(); err != nil {
		return fmt.Errorf("flowstore: redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, flowID, key string) (int64, error) {
	k := namespacedKey(flowID, key)
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("flowstore: redis incr: %w", err)
	}
	s.client.Expire(ctx, k, s.defaultTTL)
	return n, nil
}

func (s *RedisStore) SetTTL(ctx context.Context, flowID string, ttlSeconds int) error {
	pattern := "flow:" + flowID + ":*"
	ttl := time.Duration(ttlSeconds) * time.Second

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Expire(ctx, iter.Val(), ttl).Err(); err != nil {
			return fmt.Errorf("flowstore: redis expire: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("flowstore: redis scan: %w", err)
	}
	return nil
}

package queue

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DedupeStore caches a worker's marshaled response for a task ID so a
// redelivered Kafka message (at-least-once delivery) republishes the
// cell's already-computed GridCellResult instead of either re-running a
// whole dist_gridsearch cell's inner search or, worse, silently dropping
// the redelivery and leaving the master's cell count short.
// Get returns ("", nil) on a cache miss.
type DedupeStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisDedupeStore is a Redis-backed DedupeStore, keyed by the task ID
// kafka.go mints per dispatched GridCellTask.
type RedisDedupeStore struct {
	client *redis.Client
}

// NewRedisDedupeStore creates a store against addr (e.g. "localhost:6379")
// and pings it to validate the connection before returning.
func NewRedisDedupeStore(addr string) (*RedisDedupeStore, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisDedupeStore{client: c}, nil
}

// Get returns the cached response body for a task ID, or "" if this task
// has not completed before.
func (s *RedisDedupeStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set caches a task's response body under its task ID for ttl, so a
// redelivery within that window can be answered from cache.
func (s *RedisDedupeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Close closes the underlying Redis client.
func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}

package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "formrelay:dedup:"

// RedisStore is the shared backend for multi-instance deployments. SET NX
// with the window as TTL makes check-and-record a single atomic command,
// and expiry is Redis's problem instead of ours.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, window time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{
		client: client,
		window: window,
	}, nil
}

// CheckAndRecord implements Store.
func (s *RedisStore) CheckAndRecord(ctx context.Context, id string) (bool, error) {
	recorded, err := s.client.SetNX(ctx, redisKeyPrefix+id, time.Now().UnixNano(), s.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	// SETNX succeeding means the id was not present: first sighting.
	return !recorded, nil
}

// Seen implements Store.
func (s *RedisStore) Seen(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	return n > 0, nil
}

// Len implements Store. This scans the keyspace and is only meant for the
// stats endpoint, not the hot path.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("dedup scan failed: %w", err)
	}
	return count, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

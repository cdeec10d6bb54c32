package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient interface for Redis operations
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Service is a TTL'd string cache backed by Redis. Used for registry
// public-key lookups so the verification hot path avoids a registry
// round-trip per callback.
type Service struct {
	redis  RedisClient
	logger *zap.Logger
	ttl    time.Duration
}

// NewService creates a new cache service
func NewService(redis RedisClient, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		redis:  redis,
		logger: logger,
		ttl:    ttl,
	}
}

// Get retrieves a value; found is false on a cache miss.
func (s *Service) Get(ctx context.Context, key string) (value string, found bool, err error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get error: %w", err)
	}
	return val, true, nil
}

// Set stores a value under the service TTL.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key).Err()
}

// BuildKey builds a cache key with prefix
func BuildKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

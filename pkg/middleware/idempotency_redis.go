package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore shares cached responses across service instances.
type RedisIdempotencyStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration, prefix string) *RedisIdempotencyStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, err
	}
	return &cached, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) error {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+":"+key, raw, s.ttl).Err()
}

// Stop is a no-op; the Redis client is closed with the shared clients.
func (s *RedisIdempotencyStore) Stop() {}

package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces fleetAuth keys when no prefix is configured.
const DefaultRedisPrefix = "fleetauth"

// Redis is a Store backed by a Redis client. Keys are written as
// "<prefix>:<key>" and never expire.
type Redis struct {
	redis  *redis.Client
	prefix string
}

// NewRedis wraps an existing client. The client stays owned by the caller;
// Close does not close it.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{redis: client, prefix: prefix}
}

func (s *Redis) key(k string) string {
	return s.prefix + ":" + k
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKeys(key); err != nil {
		return nil, err
	}
	raw, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return raw, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := checkKeys(key); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := checkKeys(keys...); err != nil {
		return err
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return nil
}

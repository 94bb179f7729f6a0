package session

import (
	"context"
	"errors"
	"fmt"
)

// DefaultCacheKey is the key the provider session is stored under.
const DefaultCacheKey = "provider_session"

var (
	ErrCacheBackend = errors.New("session cache backend unavailable")
)

// KV is the key-value capability the cache persists into.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache keeps at most one provider session.
type Cache struct {
	kv  KV
	key string
}

func NewCache(kv KV, key string) *Cache {
	if key == "" {
		key = DefaultCacheKey
	}
	return &Cache{kv: kv, key: key}
}

// Load returns (nil, nil) when nothing is cached. An undecodable record is
// removed and reported as absent.
func (c *Cache) Load(ctx context.Context) (*Session, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheBackend, err)
	}
	if raw == nil {
		return nil, nil
	}

	s, err := Decode(raw)
	if err != nil {
		if delErr := c.kv.Delete(ctx, c.key); delErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheBackend, delErr)
		}
		return nil, nil
	}
	return s, nil
}

func (c *Cache) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("session is nil")
	}
	raw, err := Encode(s)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheBackend, err)
	}
	return nil
}

// Clear is idempotent.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.kv.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheBackend, err)
	}
	return nil
}

// Package cache keeps computed reports in Redis. A nil or unreachable Redis
// turns every lookup into a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// Store is the byte-level backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NewRedisClient connects and pings with a short timeout. It returns nil when
// Redis is not configured or unreachable so callers can run without a cache.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[cache] redis %s unavailable, reports will not be cached: %v", addr, err)
		_ = client.Close()
		return nil
	}
	return client
}

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.rdb == nil {
		return nil, ErrMiss
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// JSON stores values as JSON under a common prefix.
type JSON struct {
	store  Store
	prefix string
	ttl    time.Duration
}

func NewJSON(store Store, prefix string, ttl time.Duration) *JSON {
	return &JSON{store: store, prefix: prefix, ttl: ttl}
}

func (c *JSON) key(k string) string { return c.prefix + ":" + k }

// Load decodes the cached value into dst. It returns ErrMiss when nothing usable
// is stored.
func (c *JSON) Load(ctx context.Context, key string, dst any) error {
	if c == nil || c.store == nil {
		return ErrMiss
	}
	b, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMiss, key, err)
	}
	return nil
}

func (c *JSON) Save(ctx context.Context, key string, v any) error {
	if c == nil || c.store == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.store.Set(ctx, c.key(key), b, c.ttl)
}

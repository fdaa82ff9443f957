package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no snapshot exists for a key.
var ErrMiss = errors.New("rediscache: miss")

// Cache stores JSON snapshots of last-known-good chat state with a TTL, so
// a restarted console can paint the directory before its first refresh.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(addr, password string, db int, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "chatconsole"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		rdb:    redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

func (c *Cache) SaveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *Cache) LoadJSON(ctx context.Context, key string, out any) error {
	raw, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/calcfunding/publishing-backend/internal/platform/envutil"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
)

// Cache is the narrow cache surface the engine depends on: key existence,
// list length and push for the scoped-provider lists, and generic get/set
// with TTL.
type Cache interface {
	KeyExists(ctx context.Context, key string) (bool, error)
	ListLength(ctx context.Context, key string) (int64, error)
	ListRangeJSON(ctx context.Context, key string, start, stop int64, out interface{}) error
	ListPushJSON(ctx context.Context, key string, items []interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, out interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, val interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisCache(log *logger.Logger) (Cache, error) {
	addr := envutil.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisCache{log: log.With("service", "RedisCache"), rdb: rdb}, nil
}

func (c *redisCache) KeyExists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) ListLength(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

func (c *redisCache) ListRangeJSON(ctx context.Context, key string, start, stop int64, out interface{}) error {
	vals, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return err
	}
	raw := "[" + joinRaw(vals) + "]"
	return json.Unmarshal([]byte(raw), out)
}

func (c *redisCache) ListPushJSON(ctx context.Context, key string, items []interface{}, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	encoded := make([]interface{}, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return err
		}
		encoded = append(encoded, string(b))
	}
	if err := c.rdb.RPush(ctx, key, encoded...).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return c.rdb.Expire(ctx, key, ttl).Err()
	}
	return nil
}

func (c *redisCache) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *redisCache) SetJSON(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func joinRaw(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"identity-service/internal/model"
)

const userKeyPrefix = "user:"

// UserCache is a Redis-backed key/value store for user records. It is a
// pure collaborator: callers decide what to cache and when to invalidate.
type UserCache struct {
	client *redis.Client
}

func NewUserCache(client *redis.Client) *UserCache {
	return &UserCache{client: client}
}

func NewClient(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("redis connected", "addr", addr, "db", db)
	return client, nil
}

// Get returns the cached user for key and whether a cached entry was found.
func (c *UserCache) Get(ctx context.Context, key string) (model.User, bool, error) {
	raw, err := c.client.Get(ctx, userKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("cache get %q: %w", key, err)
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		// A corrupt entry behaves like a miss; the caller will repopulate.
		return model.User{}, false, fmt.Errorf("cache decode %q: %w", key, err)
	}

	return u, true, nil
}

func (c *UserCache) Set(ctx context.Context, key string, u model.User, ttl time.Duration) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}

	if err := c.client.Set(ctx, userKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}

	return nil
}

func (c *UserCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = userKeyPrefix + key
	}

	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}

	return nil
}

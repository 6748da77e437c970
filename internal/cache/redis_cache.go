package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"decaldesk/backend/internal/domain"
)

type RedisLeaderboardCache struct {
	client *redis.Client
}

func NewRedisLeaderboardCache(addr string, password string, db int) *RedisLeaderboardCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisLeaderboardCache{client: client}
}

func (c *RedisLeaderboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLeaderboardCache) Close() error {
	return c.client.Close()
}

func (c *RedisLeaderboardCache) Get(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *RedisLeaderboardCache) Set(ctx context.Context, key string, entries []domain.LeaderboardEntry, ttl time.Duration) error {
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisLeaderboardCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

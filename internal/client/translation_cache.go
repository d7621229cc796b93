package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/amen-live/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

// TranslationCache stores finished translations by key.
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, translated string, ttl time.Duration) error
	Close() error
}

type RedisTranslationCache struct {
	client *redis.Client
	prefix string
}

func NewRedisTranslationCache(cfg config.RedisConfig, prefix string) (*RedisTranslationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisTranslationCacheFromClient(client, prefix), nil
}

func NewRedisTranslationCacheFromClient(client *redis.Client, prefix string) *RedisTranslationCache {
	return &RedisTranslationCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisTranslationCache) key(k string) string {
	return fmt.Sprintf("%s:tr:%s", c.prefix, k)
}

func (c *RedisTranslationCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

func (c *RedisTranslationCache) Set(ctx context.Context, key, translated string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), translated, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisTranslationCache) Close() error {
	return c.client.Close()
}

package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache 基于 go-redis 的 Redis 驱动
type redisCache struct {
	client     *redis.Client
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

// newRedisCache 创建 Redis 缓存并检查连通性
func newRedisCache(cfg *Config) (*redisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &redisCache{
		client:     client,
		serializer: JSONSerializer{},
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func (r *redisCache) buildKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + ":" + key
}

func (r *redisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return err
	}
	return r.serializer.Unmarshal(data, dest)
}

func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := r.serializer.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(ctx, r.buildKey(key), data, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = r.buildKey(key)
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.buildKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys 使用 SCAN 遍历匹配键，避免 KEYS 阻塞
func (r *redisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := ""
	if r.keyPrefix != "" {
		prefix = r.keyPrefix + ":"
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

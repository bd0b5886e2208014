package cache

import (
	"context"
	"path"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 基于 go-cache 的内存驱动
type memoryCache struct {
	store      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

// newMemoryCache 创建内存缓存
func newMemoryCache(cfg *Config) *memoryCache {
	cleanup := cfg.Memory.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &memoryCache{
		store:      gocache.New(gocache.NoExpiration, cleanup),
		serializer: JSONSerializer{},
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (m *memoryCache) buildKey(key string) string {
	if m.keyPrefix == "" {
		return key
	}
	return m.keyPrefix + ":" + key
}

func (m *memoryCache) Get(ctx context.Context, key string, dest any) error {
	raw, found := m.store.Get(m.buildKey(key))
	if !found {
		return ErrCacheNotFound
	}
	data, ok := raw.([]byte)
	if !ok {
		return ErrCacheNotFound
	}
	return m.serializer.Unmarshal(data, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := m.serializer.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.store.Set(m.buildKey(key), data, ttl)
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.store.Delete(m.buildKey(key))
	}
	return nil
}

func (m *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.store.Get(m.buildKey(key))
	return found, nil
}

// Keys 遍历所有未过期项进行模式匹配，模式语义对齐 Redis KEYS
func (m *memoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := ""
	if m.keyPrefix != "" {
		prefix = m.keyPrefix + ":"
	}
	var keys []string
	for k := range m.store.Items() {
		key := strings.TrimPrefix(k, prefix)
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *memoryCache) Ping(ctx context.Context) error {
	return nil
}

func (m *memoryCache) Close() error {
	m.store.Flush()
	return nil
}

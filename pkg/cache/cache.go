// Package cache 提供统一的缓存接口，支持内存与 Redis 两种驱动。
// 用于保存设备状态、项目进度等跨连接共享的运行时数据。
package cache

import (
	"context"
	"time"
)

// Cache 缓存接口
type Cache interface {
	// Get 获取缓存值并反序列化到 dest；键不存在时返回 ErrCacheNotFound
	Get(ctx context.Context, key string, dest any) error

	// Set 序列化并写入缓存值；ttl 为 0 表示不过期
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete 删除缓存键
	Delete(ctx context.Context, keys ...string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Keys 返回匹配 pattern 的所有键（pattern 语义与 Redis KEYS 一致）
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping 检查缓存服务连通性
	Ping(ctx context.Context) error

	// Close 关闭缓存连接
	Close() error
}

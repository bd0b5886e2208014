package cache

import "errors"

var (
	// ErrCacheNotFound 缓存键不存在
	ErrCacheNotFound = errors.New("cache: key not found")

	// ErrInvalidConfig 缓存配置无效
	ErrInvalidConfig = errors.New("cache: invalid config")

	// ErrUnsupportedDriver 不支持的缓存驱动
	ErrUnsupportedDriver = errors.New("cache: unsupported driver")

	// ErrCacheClosed 缓存已关闭
	ErrCacheClosed = errors.New("cache: closed")
)

package cache

// New 根据配置创建缓存实例
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverMemory:
		return newMemoryCache(cfg), nil
	case DriverRedis:
		return newRedisCache(cfg)
	default:
		return nil, ErrUnsupportedDriver
	}
}

// NewMemory 创建内存缓存的便捷方法
func NewMemory() Cache {
	return newMemoryCache(DefaultConfig())
}

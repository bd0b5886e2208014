package cache

import (
	"fmt"
	"time"
)

// Driver 缓存驱动类型
type Driver string

const (
	// DriverMemory 内存驱动
	DriverMemory Driver = "memory"
	// DriverRedis Redis 驱动
	DriverRedis Driver = "redis"
)

// Config 缓存配置
type Config struct {
	// Driver 驱动类型：memory 或 redis
	Driver Driver `mapstructure:"driver" json:"driver"`

	// KeyPrefix 键前缀，用于多服务共用实例时隔离命名空间
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"`

	// DefaultTTL 默认过期时间，0 表示不过期
	DefaultTTL time.Duration `mapstructure:"default_ttl" json:"default_ttl"`

	// Memory 内存驱动配置
	Memory MemoryConfig `mapstructure:"memory" json:"memory"`

	// Redis Redis 驱动配置
	Redis RedisConfig `mapstructure:"redis" json:"redis"`
}

// MemoryConfig 内存驱动配置
type MemoryConfig struct {
	// CleanupInterval 过期项清理间隔
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval"`
}

// RedisConfig Redis 驱动配置
type RedisConfig struct {
	// Addr Redis 地址，如 localhost:6379
	Addr string `mapstructure:"addr" json:"addr"`

	// Password 密码
	Password string `mapstructure:"password" json:"password"`

	// DB 数据库编号
	DB int `mapstructure:"db" json:"db"`

	// PoolSize 连接池大小
	PoolSize int `mapstructure:"pool_size" json:"pool_size"`

	// DialTimeout 连接超时
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`

	// ReadTimeout 读超时
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`

	// WriteTimeout 写超时
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
}

// DefaultConfig 返回默认缓存配置（内存驱动）
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverMemory,
		Memory: MemoryConfig{
			CleanupInterval: 10 * time.Minute,
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis addr is required", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Driver)
	}
}

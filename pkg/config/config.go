package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 配置管理器：viper 之上的薄封装，支持文件加载、
// 环境变量覆盖与 fsnotify 驱动的热更新回调。
type Config struct {
	viper *viper.Viper
	mu    sync.RWMutex

	// 配置文件相关
	configFile  string   // 配置文件完整路径
	configName  string   // 配置文件名（不含扩展名）
	configType  string   // 配置文件类型
	configPaths []string // 配置文件搜索路径

	// 监控相关
	autoWatch bool            // 加载后自动开启文件监控
	watching  bool            // 是否正在监控
	onChange  func()          // 配置变更回调
	defaults  map[string]any  // 默认配置值
	envPrefix string          // 环境变量前缀
}

// New 创建配置管理器
func New(opts ...Option) *Config {
	c := &Config{
		viper: viper.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load 加载配置文件
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.defaults {
		c.viper.SetDefault(k, v)
	}

	if c.envPrefix != "" {
		c.viper.SetEnvPrefix(c.envPrefix)
		c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		c.viper.AutomaticEnv()
	}

	if c.configFile != "" {
		c.viper.SetConfigFile(c.configFile)
	} else {
		if c.configName != "" {
			c.viper.SetConfigName(c.configName)
		}
		if c.configType != "" {
			c.viper.SetConfigType(c.configType)
		}
		for _, path := range c.configPaths {
			c.viper.AddConfigPath(path)
		}
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read failed: %w", err)
	}

	if c.autoWatch {
		c.startWatchLocked()
	}
	return nil
}

// OnChange 设置配置变更回调
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// StartWatch 开始监控配置文件变更；重复调用为 no-op
func (c *Config) StartWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.watching {
		c.startWatchLocked()
	}
}

// startWatchLocked 需持锁调用
func (c *Config) startWatchLocked() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.mu.RLock()
		watching := c.watching
		onChange := c.onChange
		c.mu.RUnlock()

		if watching && onChange != nil {
			onChange()
		}
	})
	c.viper.WatchConfig()
	c.watching = true
}

// StopWatch 停止监控配置文件
// 注意：viper 未提供停止底层 fsnotify watcher 的方法，
// 此方法仅标记状态使回调不再生效
func (c *Config) StopWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = false
}

// Unmarshal 将配置解析到结构体
func (c *Config) Unmarshal(v any) error {
	return c.viper.Unmarshal(v)
}

// UnmarshalKey 将指定键解析到结构体
func (c *Config) UnmarshalKey(key string, v any) error {
	return c.viper.UnmarshalKey(key, v)
}

// GetString 获取字符串配置
func (c *Config) GetString(key string) string {
	return c.viper.GetString(key)
}

// GetInt 获取整数配置
func (c *Config) GetInt(key string) int {
	return c.viper.GetInt(key)
}

// GetBool 获取布尔配置
func (c *Config) GetBool(key string) bool {
	return c.viper.GetBool(key)
}

// GetDuration 获取时间间隔配置
func (c *Config) GetDuration(key string) time.Duration {
	return c.viper.GetDuration(key)
}

// IsSet 检查键是否存在
func (c *Config) IsSet(key string) bool {
	return c.viper.IsSet(key)
}

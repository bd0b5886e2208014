package config

// Option 配置管理器选项
type Option func(*Config)

// WithConfigFile 指定配置文件完整路径
func WithConfigFile(file string) Option {
	return func(c *Config) {
		c.configFile = file
	}
}

// WithConfigName 指定配置文件名（不含扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) {
		c.configName = name
	}
}

// WithConfigType 指定配置文件类型，如 yaml、json
func WithConfigType(typ string) Option {
	return func(c *Config) {
		c.configType = typ
	}
}

// WithConfigPath 添加配置文件搜索路径，可多次使用
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.configPaths = append(c.configPaths, path)
	}
}

// WithAutoWatch 加载后自动开启文件监控
func WithAutoWatch() Option {
	return func(c *Config) {
		c.autoWatch = true
	}
}

// WithDefault 设置默认配置值
func WithDefault(key string, value any) Option {
	return func(c *Config) {
		if c.defaults == nil {
			c.defaults = make(map[string]any)
		}
		c.defaults[key] = value
	}
}

// WithEnvPrefix 设置环境变量前缀并开启环境变量覆盖
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

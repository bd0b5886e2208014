package logger

import "go.uber.org/zap/zapcore"

// Level 日志级别
type Level int8

const (
	// DebugLevel 调试信息（开发环境）
	DebugLevel Level = iota - 1
	// InfoLevel 常规信息（默认级别）
	InfoLevel
	// WarnLevel 警告信息
	WarnLevel
	// ErrorLevel 错误信息
	ErrorLevel
)

// String 返回级别名称
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel 解析级别名称，未知名称回落到 InfoLevel
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// toZapLevel 转换为 zap 级别
func (l Level) toZapLevel() zapcore.Level {
	return zapcore.Level(l)
}

// Format 日志格式
type Format string

const (
	// JSONFormat JSON 格式（生产环境推荐）
	JSONFormat Format = "json"
	// ConsoleFormat 控制台格式（开发环境推荐）
	ConsoleFormat Format = "console"
)

// RotateConfig 文件轮转配置
type RotateConfig struct {
	Filename   string `mapstructure:"filename"`    // 日志文件路径
	MaxSize    int    `mapstructure:"max_size"`    // 单文件最大大小（MB，默认 100）
	MaxAge     int    `mapstructure:"max_age"`     // 文件保留天数（默认 30）
	MaxBackups int    `mapstructure:"max_backups"` // 最多保留文件数（默认 10）
	LocalTime  bool   `mapstructure:"local_time"`  // 使用本地时间
	Compress   bool   `mapstructure:"compress"`    // 是否压缩
}

// setDefaults 设置默认值
func (r *RotateConfig) setDefaults() {
	if r.MaxSize == 0 {
		r.MaxSize = 100
	}
	if r.MaxAge == 0 {
		r.MaxAge = 30
	}
	if r.MaxBackups == 0 {
		r.MaxBackups = 10
	}
	r.LocalTime = true
}

// Config 日志配置
type Config struct {
	Level            Level         // 日志级别（默认 InfoLevel）
	Format           Format        // 日志格式（json/console，默认 json）
	Console          bool          // 是否输出到控制台
	Rotate           *RotateConfig // 轮转配置（nil 则不输出到文件）
	EnableCaller     bool          // 是否记录调用位置
	EnableStacktrace bool          // 是否记录堆栈（Error 及以上）
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	// 无任何输出时默认打到控制台
	if !c.Console && c.Rotate == nil {
		c.Console = true
	}
}

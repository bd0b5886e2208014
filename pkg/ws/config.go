package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config 连接注册中心配置
type Config struct {
	// 连接配置
	MaxConnections int           // 最大连接数，超限时拒绝握手
	MaxMessageSize int64         // 单条入站消息大小上限
	WriteWait      time.Duration // 单次写超时

	// 心跳配置
	HeartbeatInterval time.Duration // 心跳探测间隔
	HeartbeatTimeout  time.Duration // 活跃窗口超时，超过即判定对端失联

	// 房间配置
	MaxRoomSize int // 单个房间最大成员数

	// 广播配置
	BroadcastWorkers int           // 广播 worker 池大小
	BroadcastTimeout time.Duration // 单次广播总预算

	// Upgrader 配置
	Upgrader UpgraderConfig

	// 日志
	Logger *zap.Logger
}

// UpgraderConfig Upgrader 配置
type UpgraderConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	CheckOrigin       func(*http.Request) bool
	EnableCompression bool
	AllowedOrigins    []string // Origin 白名单；为空时使用同源检查
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    10000,
		MaxMessageSize:    512 * 1024,
		WriteWait:         10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  90 * time.Second,
		MaxRoomSize:       1000,
		BroadcastWorkers:  100,
		BroadcastTimeout:  5 * time.Second,
		Upgrader: UpgraderConfig{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: MaxConnections must be positive, got %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: MaxMessageSize must be positive, got %d", ErrInvalidConfig, c.MaxMessageSize)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("%w: WriteWait must be positive, got %v", ErrInvalidConfig, c.WriteWait)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: HeartbeatInterval must be positive, got %v", ErrInvalidConfig, c.HeartbeatInterval)
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("%w: HeartbeatTimeout (%v) must be greater than HeartbeatInterval (%v)",
			ErrInvalidConfig, c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	if c.MaxRoomSize <= 0 {
		return fmt.Errorf("%w: MaxRoomSize must be positive, got %d", ErrInvalidConfig, c.MaxRoomSize)
	}
	if c.BroadcastWorkers <= 0 {
		return fmt.Errorf("%w: BroadcastWorkers must be positive, got %d", ErrInvalidConfig, c.BroadcastWorkers)
	}
	if c.BroadcastTimeout <= 0 {
		return fmt.Errorf("%w: BroadcastTimeout must be positive, got %v", ErrInvalidConfig, c.BroadcastTimeout)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithMaxConnections 设置最大连接数
func WithMaxConnections(max int) Option {
	return func(c *Config) {
		c.MaxConnections = max
	}
}

// WithMaxMessageSize 设置入站消息大小上限
func WithMaxMessageSize(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithWriteWait 设置单次写超时
func WithWriteWait(d time.Duration) Option {
	return func(c *Config) {
		c.WriteWait = d
	}
}

// WithHeartbeatInterval 设置心跳间隔
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatInterval = d
	}
}

// WithHeartbeatTimeout 设置心跳超时
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatTimeout = d
	}
}

// WithMaxRoomSize 设置单房间最大成员数
func WithMaxRoomSize(size int) Option {
	return func(c *Config) {
		c.MaxRoomSize = size
	}
}

// WithBroadcastWorkers 设置广播 worker 池大小
func WithBroadcastWorkers(n int) Option {
	return func(c *Config) {
		c.BroadcastWorkers = n
	}
}

// WithBroadcastTimeout 设置广播预算
func WithBroadcastTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.BroadcastTimeout = d
	}
}

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.Upgrader.CheckOrigin = fn
	}
}

// WithCheckOriginWhitelist 设置 Origin 白名单
func WithCheckOriginWhitelist(allowedOrigins []string) Option {
	return func(c *Config) {
		c.Upgrader.AllowedOrigins = allowedOrigins
		c.Upgrader.CheckOrigin = createWhitelistChecker(allowedOrigins)
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return func(c *Config) {
		c.Upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// defaultCheckOrigin 默认 Origin 检查（同源策略）
// 设备端等非浏览器客户端不携带 Origin，放行空值
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// createWhitelistChecker 创建白名单检查器
func createWhitelistChecker(allowedOrigins []string) func(*http.Request) bool {
	whitelist := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		whitelist[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		return whitelist[origin]
	}
}

// Upgrader WebSocket 升级器
type Upgrader struct {
	upgrader websocket.Upgrader
}

// NewUpgrader 创建升级器
func NewUpgrader(config UpgraderConfig) *Upgrader {
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		if len(config.AllowedOrigins) > 0 {
			checkOrigin = createWhitelistChecker(config.AllowedOrigins)
		} else {
			checkOrigin = defaultCheckOrigin
		}
	}

	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			HandshakeTimeout:  config.HandshakeTimeout,
			CheckOrigin:       checkOrigin,
			EnableCompression: config.EnableCompression,
		},
	}
}

// Upgrade 升级 HTTP 连接为 WebSocket
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return u.upgrader.Upgrade(w, r, nil)
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/podprint/realtime/pkg/logger"
)

// LoggerConfig 日志中间件配置
type LoggerConfig struct {
	// Logger 日志实例（必填）
	Logger logger.Logger

	// SkipFunc 跳过日志的函数
	SkipFunc func(c *gin.Context) bool

	// ExcludePaths 排除的路径（不记录日志）
	// WebSocket 长连接端点通常应排除，否则一条日志挂到连接断开才输出
	ExcludePaths []string
}

// Logger 创建请求日志中间件，
// 记录方法、路径、客户端 IP、状态码与耗时
func Logger(log logger.Logger, cfgs ...*LoggerConfig) gin.HandlerFunc {
	cfg := &LoggerConfig{Logger: log}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
		if cfg.Logger == nil {
			cfg.Logger = log
		}
	}

	skipMap := make(map[string]bool)
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			c.Next()
			return
		}
		if skipMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		clientIP := c.ClientIP()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", clientIP),
		}
		switch {
		case status >= 500:
			cfg.Logger.Error("request completed", fields...)
		case status >= 400:
			cfg.Logger.Warn("request completed", fields...)
		default:
			cfg.Logger.Info("request completed", fields...)
		}
	}
}

package logger

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID 将 trace_id 注入 context，供 *Context 日志方法提取
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// Logger 日志接口
type Logger interface {
	// 基础日志方法
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)

	// 带 Context 的日志方法（自动提取 TraceID / SpanID）
	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, msg string, fields ...zap.Field)

	// 工具方法
	With(fields ...zap.Field) Logger
	Zap() *zap.Logger // 暴露底层 zap.Logger 供需要具体类型的组件使用
	Sync() error
}

// logger 日志实现
type logger struct {
	zap *zap.Logger
}

// New 创建 Logger
func New(config *Config) (Logger, error) {
	if config == nil {
		config = &Config{}
	}
	config.setDefaults()

	encoder := buildEncoder(config)
	writers, err := buildWriters(config)
	if err != nil {
		return nil, err
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("logger: no output configured")
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), config.Level.toZapLevel())

	opts := []zap.Option{}
	if config.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if config.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &logger{zap: zap.New(core, opts...)}, nil
}

// Default 创建默认 Logger（开发环境配置）
func Default() Logger {
	l, _ := New(&Config{Level: DebugLevel, Format: ConsoleFormat, Console: true})
	return l
}

// buildEncoder 构建 Encoder
func buildEncoder(config *Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if config.Format == ConsoleFormat {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// buildWriters 构建 WriteSyncer
func buildWriters(config *Config) ([]zapcore.WriteSyncer, error) {
	var writers []zapcore.WriteSyncer

	if config.Console {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}

	if config.Rotate != nil {
		config.Rotate.setDefaults()
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.Rotate.Filename,
			MaxSize:    config.Rotate.MaxSize,
			MaxAge:     config.Rotate.MaxAge,
			MaxBackups: config.Rotate.MaxBackups,
			LocalTime:  config.Rotate.LocalTime,
			Compress:   config.Rotate.Compress,
		}))
	}

	return writers, nil
}

func (l *logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }
func (l *logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

// DebugContext 记录带 Context 的调试日志
func (l *logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, l.contextFields(ctx, fields)...)
}

// InfoContext 记录带 Context 的信息日志
func (l *logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, l.contextFields(ctx, fields)...)
}

// WarnContext 记录带 Context 的警告日志
func (l *logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, l.contextFields(ctx, fields)...)
}

// ErrorContext 记录带 Context 的错误日志
func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, l.contextFields(ctx, fields)...)
}

// contextFields 从 context.Context 提取字段
func (l *logger) contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	contextFields := make([]zap.Field, 0, len(fields)+2)

	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		contextFields = append(contextFields, zap.String("trace_id", traceID))
	}

	// 从 OpenTelemetry SpanContext 提取
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		contextFields = append(contextFields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
	}

	return append(contextFields, fields...)
}

// With 创建子 Logger
func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{zap: l.zap.With(fields...)}
}

// Zap 返回底层 zap.Logger
func (l *logger) Zap() *zap.Logger {
	return l.zap
}

// Sync 刷新缓冲区
func (l *logger) Sync() error {
	return l.zap.Sync()
}

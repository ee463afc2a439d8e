// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	orgIDKey     contextKey = "org_id"
)

// ContextWithRequestID 在上下文中记录请求ID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithOrgID 在上下文中记录组织ID
func ContextWithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// RequestID 读取上下文中的请求ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 添加组织ID
	if orgID, ok := ctx.Value(orgIDKey).(string); ok {
		l = l.With().Str("org_id", orgID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// ValidationLogger 校验引擎专用日志器
type ValidationLogger struct {
	base *zerolog.Logger
}

// NewValidationLogger 创建校验引擎日志器
func NewValidationLogger() *ValidationLogger {
	return NewValidationLoggerFrom(*Get())
}

// NewValidationLoggerFrom 基于给定日志器创建校验引擎日志器
func NewValidationLoggerFrom(base zerolog.Logger) *ValidationLogger {
	l := base.With().Str("component", "validator").Logger()
	return &ValidationLogger{base: &l}
}

// Logger 返回底层日志器
func (l *ValidationLogger) Logger() *zerolog.Logger {
	return l.base
}

// StartValidation 记录校验开始
func (l *ValidationLogger) StartValidation(start, end string, evaluators, assignments int) {
	l.base.Debug().
		Str("start_date", start).
		Str("end_date", end).
		Int("evaluators", evaluators).
		Int("assignments", assignments).
		Msg("开始校验排班")
}

// EvaluatorFailed 记录规则执行失败
func (l *ValidationLogger) EvaluatorFailed(evaluator string, err error) {
	l.base.Error().
		Err(err).
		Str("evaluator", evaluator).
		Msg("规则执行失败，按零违规处理")
}

// ConstraintViolation 记录约束违反
func (l *ValidationLogger) ConstraintViolation(ruleID, hardness, message string) {
	l.base.Debug().
		Str("rule_id", ruleID).
		Str("type", hardness).
		Str("message", message).
		Msg("约束违反")
}

// CacheInvalidated 记录缓存失效
func (l *ValidationLogger) CacheInvalidated(kind string, evaluators []string) {
	l.base.Debug().
		Str("change", kind).
		Strs("evaluators", evaluators).
		Msg("缓存已失效")
}

// ValidationComplete 记录校验完成
func (l *ValidationLogger) ValidationComplete(duration time.Duration, hard, soft int, valid bool) {
	l.base.Info().
		Dur("duration", duration).
		Int("hard", hard).
		Int("soft", soft).
		Bool("valid", valid).
		Msg("排班校验完成")
}

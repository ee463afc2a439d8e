// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paiban/rostercheck/pkg/constraint/builtin"
)

// EnvConfigFile 指定YAML配置文件路径的环境变量
const EnvConfigFile = "RULECHECK_CONFIG"

// Config 应用配置
type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Validation builtin.Settings `yaml:"validation"`
	Cache      CacheConfig      `yaml:"cache"`
	Reactive   ReactiveConfig   `yaml:"reactive"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string  `yaml:"name" validate:"required"`
	Env       string  `yaml:"env" validate:"oneof=development production test"`
	Port      int     `yaml:"port" validate:"min=1,max=65535"`
	LogLevel  string  `yaml:"log_level" validate:"oneof=debug info warn error"`
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"` // 每秒请求数，0表示不限流
}

// DatabaseConfig 数据库配置
// 未启用时只提供无状态校验接口
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host" validate:"required_if=Enabled true"`
	Port            int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Name            string        `yaml:"name" validate:"required_if=Enabled true"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// ReactiveConfig 自动校验配置
type ReactiveConfig struct {
	AutoValidate bool          `yaml:"auto_validate"`
	Debounce     time.Duration `yaml:"debounce" validate:"gte=0"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

var validate = validator.New()

// Load 加载配置
// 顺序: .env -> 环境变量 -> RULECHECK_CONFIG 指向的YAML文件
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := fromEnv()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath 以默认值和环境变量为基础叠加指定YAML文件
func LoadFromPath(path string) (*Config, error) {
	cfg := fromEnv()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func fromEnv() *Config {
	defaults := builtin.DefaultSettings()

	return &Config{
		App: AppConfig{
			Name:      getEnv("APP_NAME", "rostercheck"),
			Env:       getEnv("APP_ENV", "development"),
			Port:      getEnvInt("APP_PORT", 7012),
			LogLevel:  getEnv("APP_LOG_LEVEL", "info"),
			RateLimit: getEnvFloat("APP_RATE_LIMIT", 100),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "paiban"),
			User:            getEnv("DB_USER", "paiban"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Validation: builtin.Settings{
			MinRestMinutes:      getEnvInt("VALIDATION_MIN_REST_MINUTES", defaults.MinRestMinutes),
			MaxWeeklyHours:      getEnvFloat("VALIDATION_MAX_WEEKLY_HOURS", defaults.MaxWeeklyHours),
			MaxWeekendsPerMonth: getEnvInt("VALIDATION_MAX_WEEKENDS", defaults.MaxWeekendsPerMonth),
			DefaultShiftMinutes: getEnvInt("VALIDATION_DEFAULT_SHIFT_MINUTES", defaults.DefaultShiftMinutes),
			AvailableCodes:      getEnvList("VALIDATION_AVAILABLE_CODES", defaults.AvailableCodes),
			PartialCodes:        getEnvList("VALIDATION_PARTIAL_CODES", defaults.PartialCodes),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			TTL:     getEnvDuration("CACHE_TTL", 60*time.Second),
		},
		Reactive: ReactiveConfig{
			AutoValidate: getEnvBool("REACTIVE_AUTO_VALIDATE", true),
			Debounce:     getEnvDuration("REACTIVE_DEBOUNCE", 500*time.Millisecond),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}
}

// mergeFile 用YAML文件中出现的字段覆盖当前值
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

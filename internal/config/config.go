package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar 指定 YAML 配置文件路径
const ConfigPathEnvVar = "CONFIG_PATH"

// Config 应用配置
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Runs        RunsConfig        `koanf:"runs"`
	Logging     LoggingConfig     `koanf:"logging"`
	Geolocation GeolocationConfig `koanf:"geolocation"`
	Tracking    TrackingConfig    `koanf:"tracking"`
	Outbox      OutboxConfig      `koanf:"outbox"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimit       float64       `koanf:"rate_limit" validate:"gte=0"` // 每个 IP 每秒请求数，0 表示不限流
	RateBurst       int           `koanf:"rate_burst" validate:"gte=0"`
}

// DatabaseConfig outbox 数据库配置。Path 为空时不启用 outbox
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// RunsConfig is the remote run persistence API
type RunsConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// GeolocationConfig selects the position source. With ReplayPath set, fixes
// are read from an NDJSON file; otherwise they are pushed over HTTP.
type GeolocationConfig struct {
	ReplayPath string `koanf:"replay_path"`
}

// TrackingConfig 跟踪会话配置
type TrackingConfig struct {
	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`
	LiveInterval time.Duration `koanf:"live_interval" validate:"gt=0"`
}

// OutboxConfig 重试队列配置
type OutboxConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"gt=0"`
	BatchSize int           `koanf:"batch_size" validate:"gt=0,lte=500"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
		},
		Database: DatabaseConfig{
			Path: "./data/runtrack.db",
		},
		Runs: RunsConfig{
			Timeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracking: TrackingConfig{
			TickInterval: time.Second,
			LiveInterval: time.Second,
		},
		Outbox: OutboxConfig{
			Interval:  30 * time.Second,
			BatchSize: 20,
		},
	}
}

// envMappings 环境变量到配置路径的映射，未列出的变量被忽略
var envMappings = map[string]string{
	"port":                   "server.port",
	"shutdown_timeout":       "server.shutdown_timeout",
	"rate_limit":             "server.rate_limit",
	"rate_burst":             "server.rate_burst",
	"db_path":                "database.path",
	"runs_api_url":           "runs.url",
	"runs_api_token":         "runs.token",
	"runs_api_timeout":       "runs.timeout",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",
	"geo_replay_path":        "geolocation.replay_path",
	"tracking_tick_interval": "tracking.tick_interval",
	"tracking_live_interval": "tracking.live_interval",
	"outbox_interval":        "outbox.interval",
	"outbox_batch_size":      "outbox.batch_size",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// Load 加载配置: defaults, then the YAML file named by CONFIG_PATH, then
// environment variables.
func Load() (*Config, error) {
	return load(os.Getenv(ConfigPathEnvVar))
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// OutboxEnabled reports whether failed runs should be queued on disk
func (c *Config) OutboxEnabled() bool {
	return c.Database.Path != ""
}

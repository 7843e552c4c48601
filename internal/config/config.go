package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Engine    EngineConfig
	Server    ServerConfig
	Env       EnvConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// EngineConfig holds session engine tuning.
type EngineConfig struct {
	Interpreter    string        `envconfig:"LUA_INTERPRETER" default:"lua"`
	Args           []string      `envconfig:"LUA_ARGS" default:"-i"`
	PollInterval   time.Duration `envconfig:"ENGINE_POLL_INTERVAL" default:"50ms"`
	ChunkWait      time.Duration `envconfig:"ENGINE_CHUNK_WAIT" default:"100ms"`
	QuietWindow    time.Duration `envconfig:"ENGINE_QUIET_WINDOW" default:"200ms"`
	GracefulStop   time.Duration `envconfig:"ENGINE_GRACEFUL_STOP" default:"2s"`
	ReadBufferSize int           `envconfig:"ENGINE_READ_BUFFER" default:"1024"`
}

// ServerConfig holds HTTP control API configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8077"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// EnvConfig holds environment profile configuration.
type EnvConfig struct {
	Profile string `envconfig:"ENV_PROFILE" default:"standard"`
	Catalog string `envconfig:"ENV_CATALOG" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Interpreter:    "lua",
			Args:           []string{"-i"},
			PollInterval:   50 * time.Millisecond,
			ChunkWait:      100 * time.Millisecond,
			QuietWindow:    200 * time.Millisecond,
			GracefulStop:   2 * time.Second,
			ReadBufferSize: 1024,
		},
		Server: ServerConfig{
			Port: "8077",
			Host: "0.0.0.0",
		},
		Env: EnvConfig{
			Profile: "standard",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

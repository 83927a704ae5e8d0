// Package config provides configuration management for the scoring service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lvonguyen/scamshield/internal/api"
	"github.com/lvonguyen/scamshield/internal/observability"
	"github.com/lvonguyen/scamshield/internal/reputation"
)

// Config holds all service configuration.
type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Redis      RedisConfig          `yaml:"redis"`
	Reputation reputation.Config    `yaml:"reputation"`
	Reports    ReportsConfig        `yaml:"reports"`
	RateLimit  api.RateLimitConfig  `yaml:"ratelimit"`
	Telemetry  observability.Config `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds Redis connection settings. The password comes from
// the environment variable named in password_env, never from the file.
type RedisConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"`
}

// Password resolves the Redis password from the environment.
func (c RedisConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// ReportsConfig holds report store settings.
type ReportsConfig struct {
	// Backend selects the store: memory or redis.
	Backend   string `yaml:"backend"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:     false,
			Addr:        "localhost:6379",
			PasswordEnv: "REDIS_PASSWORD",
			DB:          0,
			PoolSize:    10,
		},
		Reputation: reputation.DefaultConfig(),
		Reports: ReportsConfig{
			Backend:   "memory",
			KeyPrefix: "scamshield",
		},
		RateLimit: api.RateLimitConfig{
			Enabled:        false,
			IncludeHeaders: true,
		},
		Telemetry: observability.Config{
			ServiceName:    "scamshield",
			Environment:    "development",
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Reports.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid reports backend %q", c.Reports.Backend)
	}
	if c.Reports.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("reports backend is redis but redis is disabled")
	}
	return nil
}

// Package config loads the queue layer configuration from the environment,
// optionally seeded from a .env file and overlaid by a YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	SkyViewer SkyViewerConfig `yaml:"sky_viewer"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST,default=0.0.0.0"`
	Port int    `yaml:"port" env:"SERVER_PORT,default=8080"`
}

// DatabaseConfig controls the postgres connection. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DB_DRIVER,default=postgres"`
	DSN             string `yaml:"dsn" env:"DB_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME,default=300"` // seconds
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL,default=info"`
	Format     string `yaml:"format" env:"LOG_FORMAT,default=text"`
	Output     string `yaml:"output" env:"LOG_OUTPUT,default=stderr"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// AuthConfig controls bearer-token identity. An empty secret disables token
// verification and the API falls back to the X-User-ID header (development
// only).
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
}

// SkyViewerConfig locates the external sky preview widget. An empty endpoint
// leaves the preview disabled.
type SkyViewerConfig struct {
	Endpoint string `yaml:"endpoint" env:"SKYVIEWER_URL"`
	APIKey   string `yaml:"api_key" env:"SKYVIEWER_KEY"`
}

// RateLimitConfig controls the per-caller request limiter.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"RATE_LIMIT_RPS,default=25"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST,default=50"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present, and QUEUE_CONFIG_FILE may name a YAML
// file whose values overlay the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("QUEUE_CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

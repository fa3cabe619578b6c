package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	YouTubeBackendStub = "stub"
	YouTubeBackendAPI  = "api"
)

var defaultCORSOrigins = []string{"http://localhost:3000"}

// Config holds all configuration for the linkmetrics server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
	Upload   UploadConfig
	Worker   WorkerConfig
	Fetcher  FetcherConfig
}

type ServerConfig struct {
	Port int    `env:"LINKMETRICS_PORT" envDefault:"8080"`
	Env  string `env:"LINKMETRICS_ENV"  envDefault:"development"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
	MigrationsDir   string        `env:"MIGRATIONS_DIR"             envDefault:"migrations"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type HTTPConfig struct {
	CORSOrigins        []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

type UploadConfig struct {
	MaxBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
}

type WorkerConfig struct {
	Count     int `env:"WORKER_COUNT"      envDefault:"2"`
	QueueSize int `env:"WORKER_QUEUE_SIZE" envDefault:"100"`
}

type FetcherConfig struct {
	Timeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	YouTube YouTubeConfig
}

type YouTubeConfig struct {
	Backend           string  `env:"FETCHER_YOUTUBE_BACKEND"     envDefault:"stub"`
	APIKey            string  `env:"YOUTUBE_API_KEY"`
	BaseURL           string  `env:"YOUTUBE_API_BASE_URL"        envDefault:"https://www.googleapis.com/youtube/v3"`
	RequestsPerSecond float64 `env:"YOUTUBE_REQUESTS_PER_SECOND" envDefault:"5"`
}

// Load reads configuration from a .env file (when present) and environment
// variables, and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.HTTP.CORSOrigins = resolveCORSOrigins(cfg.HTTP.CORSOrigins, os.Getenv("FRONTEND_ORIGIN"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Upload.MaxBytes)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.Worker.Count)
	}
	if c.Worker.QueueSize < 1 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be at least 1, got %d", c.Worker.QueueSize)
	}

	switch c.Fetcher.YouTube.Backend {
	case YouTubeBackendStub:
	case YouTubeBackendAPI:
		if c.Fetcher.YouTube.APIKey == "" {
			return fmt.Errorf("YOUTUBE_API_KEY is required when FETCHER_YOUTUBE_BACKEND is api")
		}
		if !strings.HasPrefix(c.Fetcher.YouTube.BaseURL, "http://") && !strings.HasPrefix(c.Fetcher.YouTube.BaseURL, "https://") {
			return fmt.Errorf("YOUTUBE_API_BASE_URL must start with http:// or https://, got %q", c.Fetcher.YouTube.BaseURL)
		}
	default:
		return fmt.Errorf("FETCHER_YOUTUBE_BACKEND must be one of stub, api; got %q", c.Fetcher.YouTube.Backend)
	}

	return nil
}

// resolveCORSOrigins trims the configured origins, falling back to a single
// comma-separated FRONTEND_ORIGIN value and then to the local dev frontend.
func resolveCORSOrigins(configured []string, frontendOrigin string) []string {
	if origins := cleanOrigins(configured); len(origins) > 0 {
		return origins
	}
	if origins := cleanOrigins(strings.Split(frontendOrigin, ",")); len(origins) > 0 {
		return origins
	}
	return append([]string(nil), defaultCORSOrigins...)
}

func cleanOrigins(raw []string) []string {
	var out []string
	for _, o := range raw {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Forward   ForwardConfig   `mapstructure:"forward"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Status    StatusConfig    `mapstructure:"status"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodySize  int64         `mapstructure:"max_body_size"`
}

type UpstreamConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PathPrefix string        `mapstructure:"path_prefix"`
}

type ForwardConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	Async          bool          `mapstructure:"async"`
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
}

type DedupConfig struct {
	Window        time.Duration `mapstructure:"window"`
	Backend       string        `mapstructure:"backend"`
	RedisURL      string        `mapstructure:"redis_url"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type DLQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BasePath string `mapstructure:"base_path"`
}

type IngestConfig struct {
	SharedSecret string `mapstructure:"shared_secret"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	RedisURL string        `mapstructure:"redis_url"`
}

type StatusConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8087)
	v.SetDefault("server.read_timeout", "30s")
	// Synchronous delivery holds the caller's request open through the
	// whole retry sequence; the write timeout must cover the worst case.
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_size", 1048576)
	v.SetDefault("upstream.base_url", "http://localhost:8090")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("upstream.path_prefix", "/api/submissions")
	v.SetDefault("forward.max_retries", 3)
	v.SetDefault("forward.backoff_initial", "500ms")
	v.SetDefault("forward.backoff_factor", 3.0)
	v.SetDefault("forward.async", false)
	v.SetDefault("forward.queue_size", 1024)
	v.SetDefault("forward.workers", 4)
	v.SetDefault("dedup.window", "10m")
	v.SetDefault("dedup.backend", "memory")
	v.SetDefault("dedup.redis_url", "redis://localhost:6379/0")
	v.SetDefault("dedup.sweep_interval", "1m")
	v.SetDefault("dlq.enabled", true)
	v.SetDefault("dlq.base_path", "/var/lib/formrelay/dlq")
	v.SetDefault("ingest.shared_secret", "")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests", 300)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("status.ttl", "10m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/formrelay")
	}

	// Environment variables override
	v.SetEnvPrefix("FORMRELAY")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Forward.MaxRetries < 0 {
		return fmt.Errorf("forward.max_retries must be >= 0, got %d", c.Forward.MaxRetries)
	}
	if c.Forward.BackoffFactor <= 1 {
		return fmt.Errorf("forward.backoff_factor must be > 1, got %v", c.Forward.BackoffFactor)
	}
	switch c.Dedup.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("dedup.backend must be memory or redis, got %q", c.Dedup.Backend)
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive, got %v", c.Dedup.Window)
	}
	return nil
}

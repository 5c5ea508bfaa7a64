package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/queue"
	"github.com/Sternrassler/fetchwrapper/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the fetch-proxy configuration file.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Upstream is the base URL requests are forwarded to.
	Upstream string `yaml:"upstream"`

	// UpstreamToken, when set, is sent as a bearer token on every upstream request.
	UpstreamToken string `yaml:"upstream_token"`

	// Timeout bounds each upstream request.
	Timeout time.Duration `yaml:"timeout"`

	// RedisURL enables rate-limit tracking and the failed-request queue.
	// Either host:port or a redis:// URL.
	RedisURL string `yaml:"redis_url"`

	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Queue     QueueConfig     `yaml:"queue"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RateLimitConfig configures the rate-limit gate.
type RateLimitConfig struct {
	ThrottleDelay time.Duration `yaml:"throttle_delay"`
}

// QueueConfig configures the failed-request queue.
type QueueConfig struct {
	Name         string        `yaml:"name"`
	MaxRetention time.Duration `yaml:"max_retention"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Listen:  ":8080",
		Timeout: 30 * time.Second,
		Log: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			ThrottleDelay: ratelimit.DefaultThrottleDelay,
		},
		Queue: QueueConfig{
			Name:         queue.DefaultName,
			MaxRetention: queue.DefaultMaxRetention,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Missing config file is not an error
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	c.Upstream = getEnv("FETCH_PROXY_UPSTREAM", c.Upstream)
	c.UpstreamToken = getEnv("UPSTREAM_TOKEN", c.UpstreamToken)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + strings.TrimPrefix(port, ":")
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Upstream == "" {
		return fmt.Errorf("upstream is required (set upstream or FETCH_PROXY_UPSTREAM)")
	}
	u, err := url.Parse(c.Upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream must be an absolute URL (got %q)", c.Upstream)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (got %s)", c.Timeout)
	}
	if c.RateLimit.ThrottleDelay < 0 {
		return fmt.Errorf("rate_limit.throttle_delay must be >= 0 (got %s)", c.RateLimit.ThrottleDelay)
	}
	if c.Queue.MaxRetention < 0 {
		return fmt.Errorf("queue.max_retention must be >= 0 (got %s)", c.Queue.MaxRetention)
	}
	return nil
}

// RedisOptions converts RedisURL into client options. It returns nil when
// Redis is not configured.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis_url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

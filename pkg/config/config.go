package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/starcourier/starcourier/pkg/api"
	"github.com/starcourier/starcourier/pkg/cache"
	"github.com/starcourier/starcourier/pkg/persistence"
	"github.com/starcourier/starcourier/pkg/retry"
	"github.com/starcourier/starcourier/pkg/storage"
)

// DefaultPath is the config file the CLI reads when -c is not given.
const DefaultPath = "starcourier.yaml"

// MaxRetryAttempts bounds retry.max_attempts.
const MaxRetryAttempts = 10

// Config holds all StarCourier client configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Cache    CacheConfig    `yaml:"cache"`
	Retry    RetryConfig    `yaml:"retry"`
	Storage  StorageConfig  `yaml:"storage"`
	AutoSave AutoSaveConfig `yaml:"autosave"`
	Cloud    CloudConfig    `yaml:"cloud"`
}

// APIConfig points the gateway at the game service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"STARCOURIER_API_URL"`
	Timeout time.Duration `yaml:"timeout" env:"STARCOURIER_API_TIMEOUT"`
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries" env:"STARCOURIER_CACHE_MAX_ENTRIES"`
	TTL        time.Duration `yaml:"ttl" env:"STARCOURIER_CACHE_TTL"`
}

// RetryConfig controls request retries.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"STARCOURIER_RETRY_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"base_delay" env:"STARCOURIER_RETRY_BASE_DELAY"`
}

// StorageConfig selects the durable key-value driver.
// Driver is "sqlite" (default), "redis" or "memory".
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STARCOURIER_STORAGE_DRIVER"`
	Path        string `yaml:"path" env:"STARCOURIER_DB_PATH"`
	RedisAddr   string `yaml:"redis_addr" env:"STARCOURIER_REDIS_ADDR"`
	RedisPrefix string `yaml:"redis_prefix" env:"STARCOURIER_REDIS_PREFIX"`
}

// AutoSaveConfig controls periodic saves.
type AutoSaveConfig struct {
	Enabled  bool          `yaml:"enabled" env:"STARCOURIER_AUTOSAVE"`
	Interval time.Duration `yaml:"interval" env:"STARCOURIER_AUTOSAVE_INTERVAL"`
}

// CloudConfig controls mirroring saves to the game service.
type CloudConfig struct {
	Enabled bool `yaml:"enabled" env:"STARCOURIER_CLOUD"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: api.DefaultBaseURL,
			Timeout: api.DefaultTimeout,
		},
		Cache: CacheConfig{
			MaxEntries: cache.DefaultMaxEntries,
			TTL:        cache.DefaultTTL,
		},
		Retry: RetryConfig{
			MaxAttempts: retry.DefaultMaxAttempts,
			BaseDelay:   retry.DefaultBaseDelay,
		},
		Storage: StorageConfig{
			Driver:      string(storage.DriverSQLite),
			Path:        "starcourier.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "starcourier:",
		},
		AutoSave: AutoSaveConfig{
			Enabled:  true,
			Interval: persistence.DefaultAutoSaveInterval,
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// STARCOURIER_* overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// RetryPolicy builds the gateway retry policy. Attempts above
// MaxRetryAttempts are clamped.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = min(c.Retry.MaxAttempts, MaxRetryAttempts)
	}
	if c.Retry.BaseDelay > 0 {
		p.BaseDelay = c.Retry.BaseDelay
	}
	return p
}

// StorageOptions returns the factory options for the configured driver.
func (c *Config) StorageOptions() (storage.Driver, []storage.Option) {
	opts := []storage.Option{
		storage.WithPath(c.Storage.Path),
		storage.WithRedisAddr(c.Storage.RedisAddr),
		storage.WithRedisPrefix(c.Storage.RedisPrefix),
	}
	return storage.Driver(c.Storage.Driver), opts
}

// Package storage is the durable key-value store backing saved games and UI
// settings, the client-side counterpart of browser local storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/starcourier/starcourier/pkg/storage/memory"
	"github.com/starcourier/starcourier/pkg/storage/redis"
	"github.com/starcourier/starcourier/pkg/storage/sqlite"
)

// Keys used by the client.
const (
	KeySavedGames = "starCourierSavedGames"
	KeyUISettings = "starCourierUiSettings"
)

// Store is a durable blob store keyed by string.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources.
	Close() error
}

// Driver names a Store implementation.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

var (
	ErrInvalidDriver = errors.New("invalid storage driver")
	ErrInvalidConfig = errors.New("invalid storage configuration")
)

type openConfig struct {
	path        string
	redisAddr   string
	redisPrefix string
	redisClient *goredis.Client
}

// Option configures Open.
type Option func(*openConfig)

// WithPath sets the SQLite database path.
func WithPath(path string) Option {
	return func(c *openConfig) { c.path = path }
}

// WithRedisAddr sets the address used to dial Redis when no client is given.
func WithRedisAddr(addr string) Option {
	return func(c *openConfig) { c.redisAddr = addr }
}

// WithRedisClient uses an existing Redis client.
func WithRedisClient(client *goredis.Client) Option {
	return func(c *openConfig) { c.redisClient = client }
}

// WithRedisPrefix namespaces Redis keys.
func WithRedisPrefix(prefix string) Option {
	return func(c *openConfig) { c.redisPrefix = prefix }
}

// Open creates a Store for the given driver.
func Open(driver Driver, opts ...Option) (Store, error) {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverSQLite, "":
		if cfg.path == "" {
			return nil, fmt.Errorf("%w: sqlite requires a path", ErrInvalidConfig)
		}
		return sqlite.New(cfg.path)
	case DriverMemory:
		return memory.New(), nil
	case DriverRedis:
		client := cfg.redisClient
		if client == nil {
			if cfg.redisAddr == "" {
				return nil, fmt.Errorf("%w: redis requires an address or client", ErrInvalidConfig)
			}
			client = goredis.NewClient(&goredis.Options{Addr: cfg.redisAddr})
		}
		return redis.New(client, cfg.redisPrefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}
}

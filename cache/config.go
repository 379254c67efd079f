package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-account-cache/internal/cacheinfra"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// ConfigError reports the first invalid configuration field.
type ConfigError = cacheinfra.ConfigError

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend Backend

	// Redis connection, used when Backend is redis.
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Namespace prefixes every Redis key so flushes stay inside it.
	Namespace string
	// MaxEntries caps live entries; least recently used go first.
	MaxEntries int

	// In-process tuning, used when Backend is memory.
	NumShards          int
	EvictionPercentage int
	EvictionInterval   time.Duration

	DefaultTTL       time.Duration
	MaxTTL           time.Duration
	OperationTimeout time.Duration
	Codec            string
	SingleFlight     bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	redisCfg := cacheinfra.DefaultRedisConfig()
	memCfg := cacheinfra.DefaultMemoryConfig()

	return Config{
		Backend:            BackendRedis,
		Addr:               redisCfg.Addr,
		DB:                 redisCfg.DB,
		PoolSize:           redisCfg.PoolSize,
		DialTimeout:        redisCfg.DialTimeout,
		ReadTimeout:        redisCfg.ReadTimeout,
		WriteTimeout:       redisCfg.WriteTimeout,
		Namespace:          redisCfg.Namespace,
		MaxEntries:         redisCfg.MaxEntries,
		NumShards:          memCfg.NumShards,
		EvictionPercentage: memCfg.EvictionPercentage,
		EvictionInterval:   memCfg.EvictionInterval,
		DefaultTTL:         DefaultTTL,
		MaxTTL:             memCfg.MaxTTL,
		OperationTimeout:   DefaultOperationTimeout,
		Codec:              CodecJSON,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if _, err := CodecByName(c.Codec); err != nil {
		return &ConfigError{Field: "Codec", Message: err.Error()}
	}
	if c.OperationTimeout < 0 {
		return &ConfigError{Field: "OperationTimeout", Message: "must be non-negative"}
	}

	switch c.Backend {
	case BackendRedis:
		return c.redisConfig().Validate()
	case BackendMemory:
		return c.memoryConfig().Validate()
	default:
		return &ConfigError{Field: "Backend", Message: "must be one of redis, memory"}
	}
}

func (c Config) redisConfig() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		Namespace:    c.Namespace,
		MaxEntries:   c.MaxEntries,
		DefaultTTL:   c.DefaultTTL,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	}
}

func (c Config) memoryConfig() cacheinfra.MemoryConfig {
	return cacheinfra.MemoryConfig{
		Capacity:           c.MaxEntries,
		NumShards:          c.NumShards,
		MaxTTL:             c.MaxTTL,
		DefaultTTL:         c.DefaultTTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// NewStore builds the Store selected by cfg.Backend. A redis store is pinged
// before it is returned and implements io.Closer.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendMemory {
		store, err := cacheinfra.NewSturdycStore(cfg.memoryConfig())
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := cacheinfra.NewRedisStore(ctx, cfg.redisConfig())
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewCacheService constructs a Service and its Store from cfg. Extra options
// are applied after the ones derived from cfg.
func NewCacheService(ctx context.Context, cfg Config, opts ...Option) (*Service, Store, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	return NewService(store, append(cfg.ServiceOptions(), opts...)...), store, nil
}

// ServiceOptions returns the Service options derived from c.
func (c Config) ServiceOptions() []Option {
	codec, _ := CodecByName(c.Codec)
	opts := []Option{
		WithValueCodec(codec),
		WithDefaultTTL(c.DefaultTTL),
		WithOperationTimeout(c.OperationTimeout),
	}
	if c.SingleFlight {
		opts = append(opts, WithSingleFlight())
	}
	return opts
}

package cacheinfra

import (
	"strings"
	"time"
)

// MemoryConfig holds the configuration for the sturdyc-backed store.
type MemoryConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// MaxTTL is the lifetime sturdyc applies to every entry. Per-entry TTLs
	// are honored up to this bound.
	MaxTTL time.Duration

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultMemoryConfig returns a MemoryConfig with sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           1000,
		NumShards:          16,
		MaxTTL:             24 * time.Hour,
		DefaultTTL:         5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.NumShards > c.Capacity {
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}
	if c.MaxTTL <= 0 {
		return &ConfigError{Field: "MaxTTL", Message: "must be greater than 0"}
	}
	if c.DefaultTTL <= 0 || c.DefaultTTL > c.MaxTTL {
		return &ConfigError{Field: "DefaultTTL", Message: "must be greater than 0 and at most MaxTTL"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

// RedisConfig holds the connection and capacity settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key written by the store. ResetAll and
	// KeysMatching never look outside it.
	Namespace string

	// MaxEntries caps the number of live keys. Least recently used keys are
	// evicted once it is exceeded.
	MaxEntries int

	DefaultTTL   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Namespace:    "account:",
		MaxEntries:   1000,
		DefaultTTL:   5 * time.Minute,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
	}
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "must not be empty"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "DB", Message: "must be non-negative"}
	}
	if c.Namespace == "" {
		return &ConfigError{Field: "Namespace", Message: "must not be empty"}
	}
	if strings.HasPrefix(indexKey(c.Namespace), c.Namespace) {
		return &ConfigError{Field: "Namespace", Message: "must not be a prefix of " + indexPrefix}
	}
	if c.MaxEntries <= 0 {
		return &ConfigError{Field: "MaxEntries", Message: "must be greater than 0"}
	}
	if c.DefaultTTL <= 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	indexPrefix = "__lru:"
	scanCount   = 256
)

// indexKey names the eviction index of namespace. It sits outside the
// namespace so no cache key can overwrite it.
func indexKey(namespace string) string {
	return indexPrefix + namespace
}

// RedisStore keeps entries in Redis under a namespace prefix. When MaxEntries
// is set, a sorted set ordered by last access tracks entries and the oldest
// are evicted once the cap is exceeded.
type RedisStore struct {
	client     redis.UniversalClient
	namespace  string
	index      string
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
	owned      bool
}

// NewRedisStore validates cfg, dials Redis and pings it.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cacheinfra: redis ping %s: %w", cfg.Addr, err)
	}

	store := NewRedisStoreWithClient(client, cfg)
	store.owned = true
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. The caller keeps
// ownership of client.
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultRedisConfig().DefaultTTL
	}
	return &RedisStore{
		client:     client,
		namespace:  cfg.Namespace,
		index:      indexKey(cfg.Namespace),
		maxEntries: cfg.MaxEntries,
		defaultTTL: ttl,
		now:        time.Now,
	}
}

func (s *RedisStore) fullKey(key string) string {
	return s.namespace + key
}

func (s *RedisStore) score() float64 {
	return float64(s.now().UnixNano())
}

// Get reads key. A hit refreshes the key's position in the eviction index.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cacheinfra: redis get %q: %w", key, err)
	}

	if s.maxEntries > 0 {
		s.client.ZAddXX(ctx, s.index, redis.Z{Score: s.score(), Member: key})
	}
	return value, true, nil
}

// Set writes key with ttl and trims the namespace back to MaxEntries.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	if s.maxEntries <= 0 {
		if err := s.client.Set(ctx, s.fullKey(key), value, ttl).Err(); err != nil {
			return fmt.Errorf("cacheinfra: redis set %q: %w", key, err)
		}
		return nil
	}

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.fullKey(key), value, ttl)
		pipe.ZAdd(ctx, s.index, redis.Z{Score: s.score(), Member: key})
		card = pipe.ZCard(ctx, s.index)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cacheinfra: redis set %q: %w", key, err)
	}

	if excess := card.Val() - int64(s.maxEntries); excess > 0 {
		return s.evict(ctx, excess)
	}
	return nil
}

func (s *RedisStore) evict(ctx context.Context, count int64) error {
	victims, err := s.client.ZPopMin(ctx, s.index, count).Result()
	if err != nil {
		return fmt.Errorf("cacheinfra: redis evict: %w", err)
	}
	if len(victims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(victims))
	for _, z := range victims {
		if member, ok := z.Member.(string); ok {
			keys = append(keys, s.fullKey(member))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cacheinfra: redis evict: %w", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.fullKey(key))
		if s.maxEntries > 0 {
			pipe.ZRem(ctx, s.index, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cacheinfra: redis del %q: %w", key, err)
	}
	return nil
}

// KeysMatching lists keys selected by pattern using SCAN MATCH, with the
// namespace stripped.
func (s *RedisStore) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	prefix, wildcard := splitPattern(pattern)
	matches := make([]string, 0)

	if !wildcard {
		n, err := s.client.Exists(ctx, s.fullKey(prefix)).Result()
		if err != nil {
			return matches, fmt.Errorf("cacheinfra: redis exists %q: %w", prefix, err)
		}
		if n > 0 {
			matches = append(matches, prefix)
		}
		return matches, nil
	}

	match := globEscape(s.namespace+prefix) + "*"
	err := s.scan(ctx, match, func(full string) {
		matches = append(matches, full[len(s.namespace):])
	})
	if err != nil {
		return matches, err
	}
	return matches, nil
}

func (s *RedisStore) scan(ctx context.Context, match string, fn func(string)) error {
	iter := s.client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		fn(iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cacheinfra: redis scan %q: %w", match, err)
	}
	return nil
}

// ResetAll deletes every key in the namespace, including the eviction index.
func (s *RedisStore) ResetAll(ctx context.Context) error {
	keys := []string{s.index}
	if err := s.scan(ctx, globEscape(s.namespace)+"*", func(full string) {
		keys = append(keys, full)
	}); err != nil {
		return err
	}

	for start := 0; start < len(keys); start += scanCount {
		end := min(start+scanCount, len(keys))
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("cacheinfra: redis reset: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client when the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

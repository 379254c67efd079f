package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/goliatone/go-account-cache/cache"
	"github.com/goliatone/go-account-cache/internal/config"
)

// TestSecret signs tokens in tests.
const TestSecret = "test-secret"

// Config returns defaults pointed at an in-memory sqlite database and the
// in-process cache backend.
func Config(t testing.TB) *config.Config {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = ":memory:"
	cfg.Auth.Secret = TestSecret
	cfg.Auth.TokenTTL = time.Hour
	cfg.Cache.Backend = string(cache.BackendMemory)
	cfg.Log.Level = "error"
	return cfg
}

// MemoryCache returns a Service backed by the in-process store.
func MemoryCache(t testing.TB, opts ...cache.Option) (*cache.Service, cache.Store) {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.Backend = cache.BackendMemory
	svc, store, err := cache.NewCacheService(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("failed to build memory cache: %v", err)
	}
	return svc, store
}

// RedisCache returns a Service backed by a miniredis instance that lives for
// the duration of the test.
func RedisCache(t testing.TB, opts ...cache.Option) (*cache.Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := cache.DefaultConfig()
	cfg.Backend = cache.BackendRedis
	cfg.Addr = mr.Addr()
	svc, store, err := cache.NewCacheService(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("failed to build redis cache: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		t.Cleanup(func() { _ = closer.Close() })
	}
	return svc, mr
}

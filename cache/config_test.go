package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"backend", func(c *Config) { c.Backend = "memcached" }, "Backend"},
		{"codec", func(c *Config) { c.Codec = "gob" }, "Codec"},
		{"timeout", func(c *Config) { c.OperationTimeout = -time.Second }, "OperationTimeout"},
		{"redis addr", func(c *Config) { c.Addr = "" }, "Addr"},
		{"memory shards", func(c *Config) { c.Backend = BackendMemory; c.NumShards = 0 }, "NumShards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			var cfgErr *ConfigError
			if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Validate() = %v, want ConfigError on %s", err, tt.field)
			}
		})
	}
}

func TestNewCacheService_Memory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMemory
	cfg.Codec = CodecMsgpack
	cfg.SingleFlight = true

	svc, store, err := NewCacheService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewCacheService() error: %v", err)
	}
	if _, ok := store.(io.Closer); ok {
		t.Error("memory store should not need closing")
	}

	ctx := context.Background()
	svc.Set(ctx, "k", account{ID: "1"}, 0)
	if got, ok := Get[account](ctx, svc, "k"); !ok || got.ID != "1" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
}

func TestNewCacheService_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.Namespace = "test:"

	svc, store, err := NewCacheService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewCacheService() error: %v", err)
	}
	closer, ok := store.(io.Closer)
	if !ok {
		t.Fatal("redis store should be closable")
	}
	defer closer.Close()

	ctx := context.Background()
	svc.Set(ctx, "users:all", []account{{ID: "1"}}, 0)

	if !mr.Exists("test:users:all") {
		t.Error("expected namespaced key in redis")
	}
	if ttl := mr.TTL("test:users:all"); ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", ttl, DefaultTTL)
	}
}

func TestNewCacheService_RedisUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 50 * time.Millisecond

	if _, _, err := NewCacheService(context.Background(), cfg); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

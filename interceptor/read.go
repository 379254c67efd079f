package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-account-cache/cache"
)

type readConfig struct {
	key string
	ttl time.Duration
}

// ReadOption configures a Cached call site.
type ReadOption func(*readConfig)

// WithKey pins the cache key instead of deriving it from the request.
func WithKey(key string) ReadOption {
	return func(c *readConfig) { c.key = key }
}

// WithTTL sets the entry lifetime. Zero uses the service default.
func WithTTL(ttl time.Duration) ReadOption {
	return func(c *readConfig) { c.ttl = ttl }
}

// Cached wraps next with read-through caching. A hit returns the cached value
// without calling next. A failing next is returned as is and nothing is stored.
func Cached[T any](p *Pipeline, next Handler[T], opts ...ReadOption) Handler[T] {
	cfg := readConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, req *Request) (T, error) {
		key, err := p.Key(ctx, req, cfg.key)
		if err != nil {
			var zero T
			return zero, err
		}

		if value, ok := cache.Get[T](ctx, p.svc, key); ok {
			p.logger.Debug("cache hit", zap.String("key", key))
			return value, nil
		}
		p.logger.Debug("cache miss", zap.String("key", key))

		value, err := next(ctx, req)
		if err != nil {
			return value, err
		}

		p.svc.Set(ctx, key, value, cfg.ttl)
		return value, nil
	}
}

package di

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-account-cache/cache"
	"github.com/goliatone/go-account-cache/interceptor"
	"github.com/goliatone/go-account-cache/internal/account"
	"github.com/goliatone/go-account-cache/internal/auth"
	"github.com/goliatone/go-account-cache/internal/config"
	"github.com/goliatone/go-account-cache/internal/httpapi"
	"github.com/goliatone/go-account-cache/internal/logging"
	"github.com/goliatone/go-account-cache/internal/metrics"
)

// MetricsNamespace prefixes every exported Prometheus series.
const MetricsNamespace = "accountd"

// Container wires the account service together from a config.Config.
// It owns the database handle and the cache store and releases them on Close.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db         *bun.DB
	cacheStore cache.Store
	cache      *cache.Service
	metrics    *metrics.Collector
	tokens     *auth.TokenManager
	accounts   *account.Service
	pipeline   *interceptor.Pipeline
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	cacheStore cache.Store
}

// WithLogger replaces the logger built from the log section.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCacheStore injects a cache store instead of building one from the cache
// section. The container does not close an injected store.
func WithCacheStore(store cache.Store) Option {
	return func(o *options) {
		o.cacheStore = store
	}
}

// NewContainer validates cfg and builds every component. On failure any
// resource opened so far is released.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Container, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Container{config: cfg, logger: o.logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.logger == nil {
		if c.logger, err = logging.New(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
	}

	c.metrics = metrics.NewCollector(MetricsNamespace)

	cacheOpts := []cache.Option{
		cache.WithLogger(c.logger.Named("cache")),
		cache.WithMetrics(c.metrics),
	}
	if o.cacheStore != nil {
		c.cacheStore = o.cacheStore
		c.cache = cache.NewService(o.cacheStore, append(cfg.CacheConfig().ServiceOptions(), cacheOpts...)...)
	} else {
		svc, store, err := cache.NewCacheService(ctx, cfg.CacheConfig(), cacheOpts...)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		c.cache, c.cacheStore = svc, ownedStore{store}
	}

	if c.db, err = account.OpenDB(ctx, cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	base := account.NewBunStore(c.db)
	if err = base.CreateSchema(ctx); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	if c.tokens, err = auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Issuer); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	users := account.NewCachedStore(base, c.cache, account.WithStoreLogger(c.logger.Named("store")))
	c.accounts = account.NewService(users, c.cache, c.tokens, c.logger.Named("account"))
	c.pipeline = interceptor.NewPipeline(c.cache,
		interceptor.WithActor(auth.Actor),
		interceptor.WithLogger(c.logger.Named("interceptor")),
	)

	return c, nil
}

// ownedStore marks a store the container built and must close.
type ownedStore struct {
	cache.Store
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// DB returns the database handle.
func (c *Container) DB() *bun.DB { return c.db }

// CacheService returns the shared cache service.
func (c *Container) CacheService() *cache.Service { return c.cache }

// Metrics returns the Prometheus collector.
func (c *Container) Metrics() *metrics.Collector { return c.metrics }

// Tokens returns the token manager.
func (c *Container) Tokens() *auth.TokenManager { return c.tokens }

// Accounts returns the account service.
func (c *Container) Accounts() *account.Service { return c.accounts }

// Pipeline returns the response caching pipeline.
func (c *Container) Pipeline() *interceptor.Pipeline { return c.pipeline }

// HealthChecks reports the database and, when supported, the cache backend.
func (c *Container) HealthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{
		"database": func(ctx context.Context) error { return c.db.PingContext(ctx) },
	}
	if p, ok := c.pinger(); ok {
		checks["cache"] = p.Ping
	}
	return checks
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (c *Container) pinger() (pinger, bool) {
	store := c.cacheStore
	if owned, ok := store.(ownedStore); ok {
		store = owned.Store
	}
	p, ok := store.(pinger)
	return p, ok
}

// Router builds the HTTP handler.
func (c *Container) Router() *gin.Engine {
	return httpapi.NewRouter(httpapi.Deps{
		Accounts:    c.accounts,
		Pipeline:    c.pipeline,
		Tokens:      c.tokens,
		Logger:      c.logger.Named("http"),
		Metrics:     c.metrics,
		ResponseTTL: c.cache.DefaultTTL(),
		Checks:      c.HealthChecks(),
	})
}

// Close releases the database and any cache store the container built.
func (c *Container) Close() error {
	var errs []error
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	if owned, ok := c.cacheStore.(ownedStore); ok {
		if closer, ok := owned.Store.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}

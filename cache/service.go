package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL applies when neither the call site nor the config sets one.
	DefaultTTL = 5 * time.Minute
	// DefaultOperationTimeout bounds every backend round-trip.
	DefaultOperationTimeout = 500 * time.Millisecond
)

// FetchFn is the function signature GetOrSet expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Metrics receives cache outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	Lookup(hit bool)
	Error(op string)
	Invalidated(kind string, keys int)
}

type nopMetrics struct{}

func (nopMetrics) Lookup(bool)             {}
func (nopMetrics) Error(string)            {}
func (nopMetrics) Invalidated(string, int) {}

// Service wraps a Store with read-through caching, invalidation and user
// namespacing. Backend and serialization failures never reach the caller:
// reads degrade to misses and writes to logged no-ops.
type Service struct {
	store      Store
	codec      ValueCodec
	defaultTTL time.Duration
	opTimeout  time.Duration
	logger     *zap.Logger
	metrics    Metrics
	flights    *singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for degraded cache operations.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithValueCodec sets the payload codec.
func WithValueCodec(codec ValueCodec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithDefaultTTL sets the TTL used when a call site passes zero.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithOperationTimeout bounds each backend call. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.opTimeout = d
	}
}

// WithMetrics reports hits, misses, errors and invalidations.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSingleFlight collapses concurrent GetOrSet misses for the same key into
// one factory call. Callers observe the same success or failure either way.
func WithSingleFlight() Option {
	return func(s *Service) {
		s.flights = &singleflight.Group{}
	}
}

// NewService constructs a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		codec:      JSONCodec(),
		defaultTTL: DefaultTTL,
		opTimeout:  DefaultOperationTimeout,
		logger:     zap.NewNop(),
		metrics:    nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultTTL returns the TTL applied when callers pass zero.
func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

func (s *Service) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.opTimeout > 0 {
		return context.WithTimeout(ctx, s.opTimeout)
	}
	return ctx, func() {}
}

// writeContext detaches from the caller so a canceled request still lets an
// in-flight write or invalidation finish.
func (s *Service) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.readContext(context.WithoutCancel(ctx))
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	opCtx, cancel := s.readContext(ctx)
	defer cancel()

	data, ok, err := s.store.Get(opCtx, key)
	if err != nil {
		s.logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		s.metrics.Error("get")
		s.metrics.Lookup(false)
		return false
	}
	if !ok {
		s.metrics.Lookup(false)
		return false
	}

	if err := s.codec.Unmarshal(data, dest); err != nil {
		s.logger.Warn("cache payload undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		s.metrics.Error("decode")
		s.metrics.Lookup(false)
		return false
	}

	s.metrics.Lookup(true)
	return true
}

// Set stores value under key. A ttl <= 0 uses the default TTL.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := s.codec.Marshal(value)
	if err != nil {
		s.logger.Warn("cache payload unencodable, dropping write", zap.String("key", key), zap.Error(err))
		s.metrics.Error("encode")
		return
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	opCtx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.store.Set(opCtx, key, data, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		s.metrics.Error("set")
	}
}

// Del removes key. Removing an absent key is a no-op.
func (s *Service) Del(ctx context.Context, key string) {
	opCtx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.store.Delete(opCtx, key); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		s.metrics.Error("delete")
		return
	}
	s.metrics.Invalidated("key", 1)
}

// Reset flushes every entry in the cache namespace.
func (s *Service) Reset(ctx context.Context) {
	opCtx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.store.ResetAll(opCtx); err != nil {
		s.logger.Warn("cache reset failed", zap.Error(err))
		s.metrics.Error("reset")
		return
	}
	s.logger.Debug("cache reset")
	s.metrics.Invalidated("reset", 0)
}

// InvalidatePattern deletes every key matched by pattern and returns how many
// were removed. Individual delete failures are logged and skipped; keys
// already removed stay removed.
func (s *Service) InvalidatePattern(ctx context.Context, pattern string) int {
	opCtx, cancel := s.writeContext(ctx)
	defer cancel()

	keys, err := s.store.KeysMatching(opCtx, pattern)
	if err != nil {
		s.logger.Warn("cache key enumeration failed", zap.String("pattern", pattern), zap.Error(err))
		s.metrics.Error("keys")
		return 0
	}

	removed := 0
	for _, key := range keys {
		if err := s.store.Delete(opCtx, key); err != nil {
			s.logger.Warn("cache delete failed during sweep",
				zap.String("pattern", pattern),
				zap.String("key", key),
				zap.Error(err))
			s.metrics.Error("delete")
			continue
		}
		removed++
	}

	s.logger.Debug("cache pattern invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
	s.metrics.Invalidated("pattern", removed)
	return removed
}

// UserKey scopes key to the namespace of userID: user:<userID>:<key>.
func UserKey(userID, key string) string {
	return "user" + KeySeparator + userID + KeySeparator + key
}

// InvalidateUserCache invalidates pattern inside the user's namespace. An
// empty pattern invalidates every key the user owns.
func (s *Service) InvalidateUserCache(ctx context.Context, userID, pattern string) int {
	if pattern == "" {
		pattern = Wildcard
	}
	return s.InvalidatePattern(ctx, UserKey(userID, pattern))
}

// Get is a type-safe wrapper around Service.Get.
func Get[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var value T
	if !s.Get(ctx, key, &value) {
		var zero T
		return zero, false
	}
	return value, true
}

// Set is a type-safe wrapper around Service.Set.
func Set[T any](ctx context.Context, s *Service, key string, value T, ttl time.Duration) {
	s.Set(ctx, key, value, ttl)
}

// GetOrSet returns the cached value for key, or invokes fetch, caches its
// result and returns it. A failing fetch propagates its error and caches nothing.
func GetOrSet[T any](ctx context.Context, s *Service, key string, fetch FetchFn[T], ttl time.Duration) (T, error) {
	if value, ok := Get[T](ctx, s, key); ok {
		return value, nil
	}

	load := func(ctx context.Context) (T, error) {
		value, err := fetch(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		s.Set(ctx, key, value, ttl)
		return value, nil
	}

	if s.flights == nil {
		return load(ctx)
	}

	// The shared call must not die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	result, err, _ := s.flights.Do(key, func() (any, error) {
		return load(shared)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	value, _ := result.(T)
	return value, nil
}

// GetUserCache reads key from the user's namespace.
func GetUserCache[T any](ctx context.Context, s *Service, userID, key string) (T, bool) {
	return Get[T](ctx, s, UserKey(userID, key))
}

// SetUserCache writes key into the user's namespace.
func SetUserCache[T any](ctx context.Context, s *Service, userID, key string, value T, ttl time.Duration) {
	s.Set(ctx, UserKey(userID, key), value, ttl)
}

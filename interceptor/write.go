package interceptor

import (
	"context"

	"go.uber.org/zap"
)

type writeConfig struct {
	pattern     string
	patternFunc func(*Request) string
}

// WriteOption configures an Invalidating call site.
type WriteOption func(*writeConfig)

// WithPattern invalidates pattern after a successful write.
func WithPattern(pattern string) WriteOption {
	return func(c *writeConfig) { c.pattern = pattern }
}

// WithPatternFunc derives the pattern from the request, e.g. to scope it to a
// path parameter. It takes precedence over WithPattern.
func WithPatternFunc(fn func(*Request) string) WriteOption {
	return func(c *writeConfig) { c.patternFunc = fn }
}

// Invalidating wraps next so that a successful call invalidates the
// configured pattern, or resets the whole cache when there is none. A failing
// next invalidates nothing and its error is returned as is.
func Invalidating[T any](p *Pipeline, next Handler[T], opts ...WriteOption) Handler[T] {
	cfg := writeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, req *Request) (T, error) {
		value, err := next(ctx, req)
		if err != nil {
			return value, err
		}

		pattern := cfg.pattern
		if cfg.patternFunc != nil {
			pattern = cfg.patternFunc(req)
		}

		if pattern == "" {
			p.logger.Info("no invalidation pattern, resetting cache",
				zap.String("method", req.Method),
				zap.String("path", req.Path))
			p.svc.Reset(ctx)
			return value, nil
		}

		n := p.svc.InvalidatePattern(ctx, pattern)
		p.logger.Debug("invalidated after write", zap.String("pattern", pattern), zap.Int("keys", n))
		return value, nil
	}
}

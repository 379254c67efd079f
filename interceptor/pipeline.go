package interceptor

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-account-cache/cache"
)

// ActorFunc resolves the caller identity from ctx. It returns "" for
// anonymous callers and an error when an authenticated context carries no
// usable identity.
type ActorFunc func(ctx context.Context) (string, error)

func anonymous(context.Context) (string, error) { return "", nil }

// Pipeline holds what both wrappers share.
type Pipeline struct {
	svc    *cache.Service
	codec  cache.KeyCodec
	actor  ActorFunc
	logger *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithKeyCodec replaces the default key codec.
func WithKeyCodec(codec cache.KeyCodec) PipelineOption {
	return func(p *Pipeline) {
		if codec != nil {
			p.codec = codec
		}
	}
}

// WithActor sets the identity accessor. Without it every caller is anonymous.
func WithActor(fn ActorFunc) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.actor = fn
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds a Pipeline over svc.
func NewPipeline(svc *cache.Service, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		svc:    svc,
		codec:  cache.NewDefaultKeyCodec(),
		actor:  anonymous,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Service exposes the underlying cache service.
func (p *Pipeline) Service() *cache.Service {
	return p.svc
}

// Key derives the cache key the read side would use for req.
func (p *Pipeline) Key(ctx context.Context, req *Request, explicit string) (string, error) {
	actor, err := p.actor(ctx)
	if err != nil {
		return "", err
	}
	in := req.keyInput(actor)
	in.ExplicitKey = explicit
	return p.codec.DeriveKey(in), nil
}

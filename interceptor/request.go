package interceptor

import (
	"context"
	"net/url"

	"github.com/goliatone/go-account-cache/cache"
)

// Request is the transport-neutral view of an inbound operation.
type Request struct {
	Method  string
	Path    string
	Params  map[string]string
	Query   url.Values
	Body    any
	RawBody []byte
}

// Handler is an underlying operation. It may fail with any error; wrappers
// never inspect it.
type Handler[T any] func(ctx context.Context, req *Request) (T, error)

// keyInput maps req onto the codec input. Params and Query pass through as
// is: a nil map is absent, an empty one is present and empty. Transports
// leave them nil when the request carries none.
func (r *Request) keyInput(actor string) cache.KeyInput {
	in := cache.KeyInput{
		Method: r.Method,
		Path:   r.Path,
		Actor:  actor,
		Params: r.Params,
		Query:  r.Query,
	}

	switch {
	case r.Body != nil:
		in.Body = r.Body
	case r.RawBody != nil:
		in.Body = r.RawBody
	}
	return in
}

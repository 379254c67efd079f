package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-account-cache/interceptor"
)

const maxBodyBytes = 1 << 20

// newRequest copies what the interceptors need out of the gin context. Query
// and Params stay nil when the request has none, so they key as absent.
func newRequest(c *gin.Context) (*interceptor.Request, error) {
	req := &interceptor.Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
	}
	if c.Request.URL.RawQuery != "" {
		req.Query = c.Request.URL.Query()
	}

	if len(c.Params) > 0 {
		req.Params = make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			req.Params[p.Key] = p.Value
		}
	}

	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "unreadable request body")
		}
		if len(body) > 0 {
			req.RawBody = body
		}
	}
	return req, nil
}

// serve adapts h to gin, writing its result as JSON with status.
func serve[T any](h interceptor.Handler[T], status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := newRequest(c)
		if err != nil {
			writeError(c, err)
			return
		}

		result, err := h(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(status, result)
	}
}

// decode unmarshals the raw body into T.
func decode[T any](req *interceptor.Request) (T, error) {
	var v T
	if len(req.RawBody) == 0 {
		return v, goerrors.New("request body is required", goerrors.CategoryValidation)
	}
	if err := json.Unmarshal(req.RawBody, &v); err != nil {
		return v, goerrors.Wrap(err, goerrors.CategoryValidation, "malformed JSON body")
	}
	return v, nil
}

// withBody wraps a handler that needs a decoded body.
func withBody[In, Out any](fn func(ctx context.Context, req *interceptor.Request, in In) (Out, error)) interceptor.Handler[Out] {
	return func(ctx context.Context, req *interceptor.Request) (Out, error) {
		in, err := decode[In](req)
		if err != nil {
			var zero Out
			return zero, err
		}
		return fn(ctx, req, in)
	}
}

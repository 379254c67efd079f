package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goliatone/go-account-cache/interceptor"
	"github.com/goliatone/go-account-cache/internal/account"
	"github.com/goliatone/go-account-cache/internal/auth"
	"github.com/goliatone/go-account-cache/internal/logging"
	"github.com/goliatone/go-account-cache/internal/metrics"
)

// UsersPattern matches every cached response under /users.
const UsersPattern = "GET:/users*"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router needs.
type Deps struct {
	Accounts *account.Service
	Pipeline *interceptor.Pipeline
	Tokens   *auth.TokenManager
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	// ResponseTTL is the lifetime of cached GET responses. Zero uses the
	// cache default.
	ResponseTTL time.Duration
	Checks      map[string]HealthCheck
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", d.Metrics.Handler())
	}
	r.GET("/healthz", healthz(d.Checks))

	h := &handlers{accounts: d.Accounts}
	p := d.Pipeline
	ttl := interceptor.WithTTL(d.ResponseTTL)
	invalidateUsers := interceptor.WithPattern(UsersPattern)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", serve(interceptor.Invalidating(p, withBody(h.register), invalidateUsers), http.StatusCreated))
	authGroup.POST("/login", serve(withBody(h.login), http.StatusOK))

	users := r.Group("/users", auth.RequireAuth(d.Tokens, logger))
	users.GET("", serve(interceptor.Cached(p, h.listUsers, ttl), http.StatusOK))
	users.GET("/profile", serve(interceptor.Cached(p, h.profile, ttl), http.StatusOK))
	users.GET("/:id", serve(interceptor.Cached(p, h.getUser, ttl), http.StatusOK))

	users.PATCH("/profile", serve(interceptor.Invalidating(p, withBody(h.updateProfile), invalidateUsers), http.StatusOK))
	users.PATCH("/change-password", serve(interceptor.Invalidating(p, withBody(h.changePassword), invalidateUsers), http.StatusOK))
	users.PATCH("/:id", serve(interceptor.Invalidating(p, withBody(h.updateUser), invalidateUsers), http.StatusOK))
	users.PATCH("/:id/activate", serve(interceptor.Invalidating(p, h.activate, invalidateUsers), http.StatusOK))
	users.PATCH("/:id/deactivate", serve(interceptor.Invalidating(p, h.deactivate, invalidateUsers), http.StatusOK))
	users.DELETE("/:id", serve(interceptor.Invalidating(p, h.deleteUser, invalidateUsers), http.StatusOK))

	return r
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": report})
	}
}

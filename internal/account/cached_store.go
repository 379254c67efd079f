package account

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-account-cache/cache"
)

const (
	DefaultEntityTTL = 5 * time.Minute
	DefaultListTTL   = 10 * time.Minute

	keyAllUsers = "users:all"
)

// KeyByID is the entity cache key for a user id.
func KeyByID(id string) string { return "user:id:" + id }

// KeyByEmail is the entity cache key for an email lookup.
func KeyByEmail(email string) string { return "user:email:" + email }

// KeyAllUsers is the cache key of the full user list.
func KeyAllUsers() string { return keyAllUsers }

// CachedStore decorates a Store with read-through caching. Reads go through
// the cache; writes go to the base store and, only on success, invalidate
// every key that could now be stale.
type CachedStore struct {
	base      Store
	cache     *cache.Service
	entityTTL time.Duration
	listTTL   time.Duration
	logger    *zap.Logger
}

var _ Store = (*CachedStore)(nil)

// CachedStoreOption configures a CachedStore.
type CachedStoreOption func(*CachedStore)

// WithEntityTTL sets the TTL of per-id and per-email entries.
func WithEntityTTL(ttl time.Duration) CachedStoreOption {
	return func(c *CachedStore) {
		if ttl > 0 {
			c.entityTTL = ttl
		}
	}
}

// WithListTTL sets the TTL of the user list entry.
func WithListTTL(ttl time.Duration) CachedStoreOption {
	return func(c *CachedStore) {
		if ttl > 0 {
			c.listTTL = ttl
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *zap.Logger) CachedStoreOption {
	return func(c *CachedStore) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedStore wraps base with caching through svc.
func NewCachedStore(base Store, svc *cache.Service, opts ...CachedStoreOption) *CachedStore {
	c := &CachedStore{
		base:      base,
		cache:     svc,
		entityTTL: DefaultEntityTTL,
		listTTL:   DefaultListTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedStore) GetByID(ctx context.Context, id string) (*User, error) {
	return cache.GetOrSet(ctx, c.cache, KeyByID(id), func(ctx context.Context) (*User, error) {
		return c.base.GetByID(ctx, id)
	}, c.entityTTL)
}

func (c *CachedStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return cache.GetOrSet(ctx, c.cache, KeyByEmail(email), func(ctx context.Context) (*User, error) {
		return c.base.GetByEmail(ctx, email)
	}, c.entityTTL)
}

func (c *CachedStore) List(ctx context.Context) ([]*User, error) {
	return cache.GetOrSet(ctx, c.cache, keyAllUsers, func(ctx context.Context) ([]*User, error) {
		return c.base.List(ctx)
	}, c.listTTL)
}

// Create passes through and drops the list and any cached email lookup.
func (c *CachedStore) Create(ctx context.Context, user *User) (*User, error) {
	created, err := c.base.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	c.cache.Del(ctx, keyAllUsers)
	c.cache.Del(ctx, KeyByEmail(created.Email))
	return created, nil
}

// Update invalidates by the email the record had before the write, read
// from the base store so a stale cached copy cannot hide it.
func (c *CachedStore) Update(ctx context.Context, user *User) (*User, error) {
	id := user.ID.String()

	emails := []string{user.Email}
	if prev, err := c.base.GetByID(ctx, id); err == nil && prev.Email != user.Email {
		emails = append(emails, prev.Email)
	}

	updated, err := c.base.Update(ctx, user)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, id, emails...)
	return updated, nil
}

func (c *CachedStore) Delete(ctx context.Context, user *User) error {
	id := user.ID.String()

	emails := []string{user.Email}
	if prev, err := c.base.GetByID(ctx, id); err == nil && prev.Email != user.Email {
		emails = append(emails, prev.Email)
	}

	if err := c.base.Delete(ctx, user); err != nil {
		return err
	}

	c.invalidate(ctx, id, emails...)
	return nil
}

// invalidate drops every cached view of user id.
func (c *CachedStore) invalidate(ctx context.Context, id string, emails ...string) {
	c.cache.Del(ctx, KeyByID(id))
	for _, email := range emails {
		c.cache.Del(ctx, KeyByEmail(email))
	}
	c.cache.Del(ctx, keyAllUsers)
	n := c.cache.InvalidateUserCache(ctx, id, "")

	c.logger.Debug("user cache invalidated",
		zap.String("user_id", id),
		zap.Strings("emails", emails),
		zap.Int("namespace_keys", n))
}

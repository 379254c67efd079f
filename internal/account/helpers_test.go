package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-account-cache/cache"
	"github.com/goliatone/go-account-cache/internal/auth"
)

func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	ctx := context.Background()

	db, err := OpenDB(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewBunStore(db)
	require.NoError(t, store.CreateSchema(ctx))
	return store
}

func newTestCache(t *testing.T) *cache.Service {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.Backend = cache.BackendMemory
	svc, _, err := cache.NewCacheService(context.Background(), cfg)
	require.NoError(t, err)
	return svc
}

// spyStore counts base reads and can fail writes on demand.
type spyStore struct {
	Store

	mu        sync.Mutex
	reads     map[string]int
	updateErr error
	deleteErr error
}

func newSpyStore(base Store) *spyStore {
	return &spyStore{Store: base, reads: map[string]int{}}
}

func (s *spyStore) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[op]++
}

func (s *spyStore) Reads(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[op]
}

func (s *spyStore) GetByID(ctx context.Context, id string) (*User, error) {
	s.count("id")
	return s.Store.GetByID(ctx, id)
}

func (s *spyStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.count("email")
	return s.Store.GetByEmail(ctx, email)
}

func (s *spyStore) List(ctx context.Context) ([]*User, error) {
	s.count("list")
	return s.Store.List(ctx)
}

func (s *spyStore) Update(ctx context.Context, user *User) (*User, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.Store.Update(ctx, user)
}

func (s *spyStore) Delete(ctx context.Context, user *User) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(ctx, user)
}

type testEnv struct {
	base   *BunStore
	spy    *spyStore
	cached *CachedStore
	cache  *cache.Service
	tokens *auth.TokenManager
	svc    *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := newTestStore(t)
	spy := newSpyStore(base)
	svc := newTestCache(t)
	cached := NewCachedStore(spy, svc)

	tokens, err := auth.NewTokenManager("test-secret", time.Hour, "accountd")
	require.NoError(t, err)

	return &testEnv{
		base:   base,
		spy:    spy,
		cached: cached,
		cache:  svc,
		tokens: tokens,
		svc:    NewService(cached, svc, tokens, nil),
	}
}

func (e *testEnv) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "password1",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return res
}

func category(err error) goerrors.Category {
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ""
}

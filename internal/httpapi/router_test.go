package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-account-cache/cache"
	"github.com/goliatone/go-account-cache/interceptor"
	"github.com/goliatone/go-account-cache/internal/account"
	"github.com/goliatone/go-account-cache/internal/auth"
	"github.com/goliatone/go-account-cache/internal/metrics"
	"github.com/goliatone/go-account-cache/pkg/testsupport"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	base    *account.BunStore
	store   cache.Store
	metrics *metrics.Collector
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := account.OpenDB(ctx, account.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	base := account.NewBunStore(db)
	require.NoError(t, base.CreateSchema(ctx))

	collector := metrics.NewCollector("accountd")
	svc, store := testsupport.MemoryCache(t, cache.WithMetrics(collector))

	tokens, err := auth.NewTokenManager(testsupport.TestSecret, time.Hour, "accountd")
	require.NoError(t, err)

	accounts := account.NewService(account.NewCachedStore(base, svc), svc, tokens, nil)

	router := NewRouter(Deps{
		Accounts:    accounts,
		Pipeline:    interceptor.NewPipeline(svc, interceptor.WithActor(auth.Actor)),
		Tokens:      tokens,
		Metrics:     collector,
		ResponseTTL: time.Minute,
		Checks:      checks,
	})

	return &testServer{router: router, base: base, store: store, metrics: collector}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// seed registers every fixture user and returns their auth results.
func (s *testServer) seed(t *testing.T) []account.AuthResult {
	t.Helper()

	var inputs []account.RegisterInput
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("users.json"), &inputs)

	results := make([]account.AuthResult, 0, len(inputs))
	for _, in := range inputs {
		rec := s.do(t, http.MethodPost, "/auth/register", "", in)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		results = append(results, decodeBody[account.AuthResult](t, rec))
	}
	return results
}

func (s *testServer) cachedResponses(t *testing.T, pattern string) []string {
	t.Helper()
	keys, err := s.store.KeysMatching(context.Background(), pattern)
	require.NoError(t, err)
	return keys
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorBody](t, rec).Error.Code
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)
	users := s.seed(t)
	require.Len(t, users, 2)
	assert.NotEmpty(t, users[0].AccessToken)
	assert.Equal(t, "ada@example.com", users[0].User.Email)

	rec := s.do(t, http.MethodPost, "/auth/login", "", account.LoginInput{
		Email:    "ADA@example.com",
		Password: "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, users[0].User.ID, decodeBody[account.AuthResult](t, rec).User.ID)

	rec = s.do(t, http.MethodPost, "/auth/login", "", account.LoginInput{
		Email:    "ada@example.com",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.seed(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "duplicate email",
			body:   account.RegisterInput{Email: "ada@example.com", Password: "password1", FirstName: "A", LastName: "L"},
			status: http.StatusConflict,
			code:   "CONFLICT",
		},
		{
			name:   "invalid email",
			body:   account.RegisterInput{Email: "nope", Password: "password1", FirstName: "A", LastName: "L"},
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
		{
			name:   "malformed json",
			body:   "{",
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
		{
			name:   "missing body",
			body:   nil,
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestUsersRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/users", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, s.cachedResponses(t, UsersPattern))
}

func TestListUsersServedFromCacheUntilWrite(t *testing.T) {
	s := newTestServer(t, nil)
	users := s.seed(t)
	token := users[0].AccessToken

	rec := s.do(t, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]account.Profile](t, rec), 2)
	assert.Len(t, s.cachedResponses(t, UsersPattern), 1)

	// Written behind the cache's back.
	now := time.Now().UTC()
	_, err := s.base.Create(context.Background(), &account.User{
		ID:           uuid.New(),
		Email:        "linus@example.com",
		PasswordHash: "x",
		FirstName:    "Linus",
		LastName:     "Torvalds",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]account.Profile](t, rec), 2)

	rec = s.do(t, http.MethodPatch, "/users/profile", token, map[string]string{"firstName": "Augusta"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, s.cachedResponses(t, UsersPattern))

	rec = s.do(t, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]account.Profile](t, rec), 3)
}

func TestResponsesAreCachedPerActor(t *testing.T) {
	s := newTestServer(t, nil)
	users := s.seed(t)

	for _, u := range users {
		rec := s.do(t, http.MethodGet, "/users/profile", u.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, u.User.Email, decodeBody[account.Profile](t, rec).Email)
	}
	assert.Len(t, s.cachedResponses(t, "GET:/users/profile*"), 2)
}

func TestProfileReadAfterWrite(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.seed(t)[0].AccessToken

	rec := s.do(t, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decodeBody[account.Profile](t, rec).FirstName)

	rec = s.do(t, http.MethodPatch, "/users/profile", token, map[string]string{"firstName": "Augusta"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Augusta", decodeBody[account.Profile](t, rec).FirstName)

	rec = s.do(t, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Augusta", decodeBody[account.Profile](t, rec).FirstName)
}

func TestFailedWriteKeepsCachedResponses(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.seed(t)[0].AccessToken

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/users", token, nil).Code)
	require.Len(t, s.cachedResponses(t, UsersPattern), 1)

	rec := s.do(t, http.MethodPatch, "/users/profile", token, map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, s.cachedResponses(t, UsersPattern), 1)

	rec = s.do(t, http.MethodPatch, "/users/profile", token, map[string]string{"email": "grace@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, s.cachedResponses(t, UsersPattern), 1)
}

func TestGetUserNotFoundIsNotCached(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.seed(t)[0].AccessToken
	missing := uuid.NewString()

	rec := s.do(t, http.MethodGet, "/users/"+missing, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
	assert.Empty(t, s.cachedResponses(t, "GET:/users/"+missing+"*"))
}

func TestActivateDeactivate(t *testing.T) {
	s := newTestServer(t, nil)
	users := s.seed(t)
	token := users[0].AccessToken
	target := users[1].User.ID

	rec := s.do(t, http.MethodGet, "/users/"+target, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[account.Profile](t, rec).IsActive)

	rec = s.do(t, http.MethodPatch, "/users/"+target+"/deactivate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[account.Profile](t, rec).IsActive)

	rec = s.do(t, http.MethodGet, "/users/"+target, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[account.Profile](t, rec).IsActive)

	rec = s.do(t, http.MethodPatch, "/users/"+target+"/activate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[account.Profile](t, rec).IsActive)
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.seed(t)[0].AccessToken

	rec := s.do(t, http.MethodPatch, "/users/change-password", token, account.ChangePasswordInput{
		CurrentPassword: "wrong-password",
		NewPassword:     "password9",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/users/change-password", token, account.ChangePasswordInput{
		CurrentPassword: "password1",
		NewPassword:     "password9",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password changed successfully", decodeBody[MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/auth/login", "", account.LoginInput{Email: "ada@example.com", Password: "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", account.LoginInput{Email: "ada@example.com", Password: "password9"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t, nil)
	users := s.seed(t)
	token := users[0].AccessToken
	target := users[1].User.ID

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/users/"+target, token, nil).Code)

	rec := s.do(t, http.MethodDelete, "/users/"+target, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", decodeBody[MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/users/"+target, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/users/"+target, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "connection refused", body.Checks["cache"])
}

func TestCacheMetricsRecorded(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.seed(t)[0].AccessToken

	s.do(t, http.MethodGet, "/users/profile", token, nil)
	s.do(t, http.MethodGet, "/users/profile", token, nil)

	assert.GreaterOrEqual(t, testutil.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")), 1.0)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accountd_cache_lookups_total")
}

package account

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := env.register(t, " Ada@Example.com ")
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, "ada@example.com", reg.User.Email)

	claims, err := env.tokens.Validate(reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.Subject)

	login, err := env.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	_, err = env.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Email: "ADA@example.com", Password: "password1", FirstName: "A", LastName: "B",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, goerrors.CategoryConflict, category(err))
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{Email: "nope", Password: "123"})
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryValidation, category(err))
}

func TestRegisterInvalidatesStaleList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "one@example.com")

	all, err := env.svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	env.register(t, "two@example.com")

	all, err = env.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReadAfterWriteProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "u1@example.com").User.ID

	before, err := env.svc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", before.FirstName)

	_, err = env.svc.FindByID(ctx, id)
	require.NoError(t, err)
	_, err = env.svc.FindByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	_, err = env.svc.FindAll(ctx)
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, id, UpdateInput{FirstName: strPtr("Grace")})
	require.NoError(t, err)

	after, err := env.svc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Grace", after.FirstName)

	byID, err := env.svc.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Grace", byID.FirstName)

	byEmail, err := env.svc.FindByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Grace", byEmail.FirstName)

	all, err := env.svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Grace", all[0].FirstName)
}

func TestProfileServedFromCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "u1@example.com").User.ID

	for i := 0; i < 3; i++ {
		_, err := env.svc.GetProfile(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.spy.Reads("id"))
}

func TestUpdateEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "old@example.com").User.ID
	env.register(t, "taken@example.com")

	_, err := env.svc.Update(ctx, id, UpdateInput{Email: strPtr("taken@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.svc.Login(ctx, LoginInput{Email: "old@example.com", Password: "password1"})
	require.NoError(t, err)

	p, err := env.svc.Update(ctx, id, UpdateInput{Email: strPtr("New@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.Email)

	_, err = env.svc.Login(ctx, LoginInput{Email: "old@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "stale email lookup must be gone")

	_, err = env.svc.Login(ctx, LoginInput{Email: "new@example.com", Password: "password1"})
	assert.NoError(t, err)
}

func TestUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "a@example.com").User.ID

	_, err := env.svc.Update(context.Background(), id, UpdateInput{Email: strPtr("not-an-email")})
	assert.Equal(t, goerrors.CategoryValidation, category(err))
}

func TestFailedUpdateKeepsCachedRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "a@example.com").User.ID

	_, err := env.svc.GetProfile(ctx, id)
	require.NoError(t, err)

	env.spy.updateErr = ErrUserNotFound
	_, err = env.svc.Update(ctx, id, UpdateInput{FirstName: strPtr("Nope")})
	require.ErrorIs(t, err, ErrUserNotFound)

	reads := env.spy.Reads("id")
	p, err := env.svc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, reads, env.spy.Reads("id"), "profile still served from cache")
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "a@example.com").User.ID

	_, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "bad", NewPassword: "password2"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	require.NoError(t, env.svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "password1", NewPassword: "password2"}))

	_, err = env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "cached email lookup must not keep the old hash")

	_, err = env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "password2"})
	assert.NoError(t, err)
}

func TestActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "a@example.com").User.ID

	all, err := env.svc.FindAll(ctx)
	require.NoError(t, err)
	require.True(t, all[0].IsActive)

	p, err := env.svc.Deactivate(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	all, err = env.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.False(t, all[0].IsActive)

	p, err = env.svc.Activate(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	profile, err := env.svc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, "a@example.com").User.ID

	_, err := env.svc.GetProfile(ctx, id)
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, id))

	_, err = env.svc.GetProfile(ctx, id)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, env.svc.Delete(ctx, id), ErrUserNotFound)
}

func TestNotFoundCategory(t *testing.T) {
	_, err := newTestEnv(t).svc.GetProfile(context.Background(), "missing")
	assert.Equal(t, goerrors.CategoryNotFound, category(err))
}

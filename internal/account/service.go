package account

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-account-cache/cache"
	"github.com/goliatone/go-account-cache/internal/auth"
)

const profileKey = "profile"

// Service implements account operations over a (usually cached) Store.
type Service struct {
	store      Store
	cache      *cache.Service
	tokens     *auth.TokenManager
	logger     *zap.Logger
	profileTTL time.Duration
	now        func() time.Time
}

// NewService creates the account service. svc backs the per-user profile
// view and may be the same service the store caches through.
func NewService(store Store, svc *cache.Service, tokens *auth.TokenManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		cache:      svc,
		tokens:     tokens,
		logger:     logger,
		profileTTL: DefaultEntityTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an active account and returns an access token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	if _, err := s.store.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user, err := s.store.Create(ctx, &User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

// Login verifies credentials against the cached email lookup.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	user, err := s.store.GetByEmail(ctx, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		s.logger.Info("login failed", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user *User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return nil, err
	}
	return newAuthResult(token, user), nil
}

// FindAll lists every user.
func (s *Service) FindAll(ctx context.Context) ([]Profile, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, nil
}

// FindByID returns the full record for id.
func (s *Service) FindByID(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// FindByEmail returns the full record for email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.store.GetByEmail(ctx, normalizeEmail(email))
}

// GetProfile returns the user without credentials, cached in the user's
// namespace.
func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	if p, ok := cache.GetUserCache[Profile](ctx, s.cache, id, profileKey); ok {
		return p, nil
	}

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	p := user.Profile()
	cache.SetUserCache(ctx, s.cache, id, profileKey, p, s.profileTTL)
	return p, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Profile, error) {
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := in.Validate(); err != nil {
		return Profile{}, validationError(err)
	}

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	if in.Email != nil && *in.Email != user.Email {
		other, err := s.store.GetByEmail(ctx, *in.Email)
		switch {
		case err == nil && other.ID != user.ID:
			return Profile{}, ErrEmailTaken
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return Profile{}, err
		}
		user.Email = *in.Email
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	return s.save(ctx, user)
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error {
	if err := in.Validate(); err != nil {
		return validationError(err)
	}

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, in.CurrentPassword) {
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	_, err = s.save(ctx, user)
	return err
}

// Activate marks the user active.
func (s *Service) Activate(ctx context.Context, id string) (Profile, error) {
	active := true
	return s.Update(ctx, id, UpdateInput{IsActive: &active})
}

// Deactivate marks the user inactive.
func (s *Service) Deactivate(ctx context.Context, id string) (Profile, error) {
	active := false
	return s.Update(ctx, id, UpdateInput{IsActive: &active})
}

// Delete removes the user.
func (s *Service) Delete(ctx context.Context, id string) error {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, user); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

func (s *Service) save(ctx context.Context, user *User) (Profile, error) {
	user.UpdatedAt = s.now()
	updated, err := s.store.Update(ctx, user)
	if err != nil {
		return Profile{}, err
	}
	return updated.Profile(), nil
}

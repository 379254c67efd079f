package account

import (
	"context"
	"fmt"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store persists users. Lookups that find nothing return ErrUserNotFound.
type Store interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	Delete(ctx context.Context, user *User) error
}

// BunStore is the SQL-backed Store.
type BunStore struct {
	db   *bun.DB
	repo repository.Repository[*User]
}

var _ Store = (*BunStore)(nil)

// NewBunStore wires a go-repository-bun repository for users over db.
func NewBunStore(db *bun.DB) *BunStore {
	handlers := repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			u.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}

	return &BunStore{
		db:   db,
		repo: repository.NewRepository[*User](db, handlers),
	}
}

// CreateSchema creates the users table when missing.
func (s *BunStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("account: create users table: %w", err)
	}
	return nil
}

func (s *BunStore) Create(ctx context.Context, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("account: create user: %w", err)
	}
	return created, nil
}

func (s *BunStore) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByID(ctx, id)
	return found(user, err)
}

func (s *BunStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	})
	return found(user, err)
}

func (s *BunStore) List(ctx context.Context) ([]*User, error) {
	users, _, err := s.repo.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.created_at ASC")
	})
	if err != nil {
		return nil, fmt.Errorf("account: list users: %w", err)
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

// Update writes every mutable column. Zero values are written as is, so
// deactivation persists.
func (s *BunStore) Update(ctx context.Context, user *User) (*User, error) {
	res, err := s.db.NewUpdate().
		Model(user).
		Column("email", "password_hash", "first_name", "last_name", "is_active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("account: update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *BunStore) Delete(ctx context.Context, user *User) error {
	if err := s.repo.Delete(ctx, user); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("account: delete user: %w", err)
	}
	return nil
}

func found(user *User, err error) (*User, error) {
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("account: load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted account record. Cached copies include the password
// hash so a cached email lookup can still verify credentials; transports
// must render Profile instead.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"passwordHash"`
	FirstName    string    `bun:"first_name" json:"firstName"`
	LastName     string    `bun:"last_name" json:"lastName"`
	IsActive     bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Profile is the user as shown to clients.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile strips credentials from u.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Summary is the compact user returned with access tokens.
type Summary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	AccessToken string  `json:"access_token"`
	User        Summary `json:"user"`
}

func newAuthResult(token string, u *User) *AuthResult {
	return &AuthResult{
		AccessToken: token,
		User: Summary{
			ID:        u.ID.String(),
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		},
	}
}

package account

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const minPasswordLength = 6

// RegisterInput is the payload for account registration.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
	)
}

// LoginInput is the payload for login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
}

func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&in.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

// ChangePasswordInput is the payload for a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (in ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, validation.Required),
		validation.Field(&in.NewPassword, validation.Required, validation.Length(minPasswordLength, 0)),
	)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

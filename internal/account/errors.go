package account

import (
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

var (
	ErrUserNotFound       = goerrors.New("user not found", goerrors.CategoryNotFound)
	ErrEmailTaken         = goerrors.New("user with this email already exists", goerrors.CategoryConflict)
	ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth)
	ErrWrongPassword      = goerrors.New("current password is incorrect", goerrors.CategoryValidation)
)

// validationError wraps an ozzo validation failure so transports can map it
// by category.
func validationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
}

// isNotFound recognizes a missing row from bun, from go-repository-bun (which
// reports it as a retryable database_not_found error) and from this package.
func isNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return true
	}
	var ge *goerrors.Error
	return errors.As(err, &ge) && ge.Category == goerrors.CategoryNotFound
}

// isUniqueViolation recognizes sqlite and postgres unique constraint errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsDuplicatedKey(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "23505")
}

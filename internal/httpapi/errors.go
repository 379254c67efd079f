package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-account-cache/internal/auth"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(err error) (int, string) {
	if errors.Is(err, auth.ErrMissingIdentity) {
		return http.StatusUnauthorized, "UNAUTHORIZED"
	}

	var ge *goerrors.Error
	if !errors.As(err, &ge) {
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}

	switch ge.Category {
	case goerrors.CategoryNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case goerrors.CategoryConflict:
		return http.StatusConflict, "CONFLICT"
	case goerrors.CategoryValidation:
		return http.StatusBadRequest, "BAD_REQUEST"
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{Error: ErrorInfo{Code: code, Message: message}})
}

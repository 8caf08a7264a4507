package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: test error", err.Error())
}

func TestAppError_WithCause(t *testing.T) {
	original := errors.New("original error")
	err := WrapError(original, ErrCodeInternal, "wrapped error", http.StatusInternalServerError)

	assert.Same(t, original, err.Cause)
	assert.Contains(t, err.Error(), "original error")
	assert.ErrorIs(t, err, original)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	err.WithContext("field", "value").WithContext("count", 42)

	assert.Equal(t, "value", err.Context["field"])
	assert.Equal(t, 42, err.Context["count"])
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("bad"), ErrCodeInvalidInput, http.StatusBadRequest},
		{NewNotFoundError("share"), ErrCodeNotFound, http.StatusNotFound},
		{NewUnauthorizedError("no token"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{NewConflictError("dup"), ErrCodeConflict, http.StatusConflict},
		{NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{NewInternalError("oops"), ErrCodeInternal, http.StatusInternalServerError},
		{NewServiceUnavailableError("down"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{NewShareBusyError(), ErrCodeShareBusy, http.StatusConflict},
		{NewNoActiveShareError(), ErrCodeNoActiveShare, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
		})
	}
}

func TestNewNotFoundError_Message(t *testing.T) {
	assert.Equal(t, "share not found", NewNotFoundError("share").Message)
}

func TestGetAppError(t *testing.T) {
	appErr := NewInternalError("boom")

	require.Same(t, appErr, GetAppError(appErr))
	require.Same(t, appErr, GetAppError(fmt.Errorf("handler: %w", appErr)))
	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NewConflictError("x")))
	assert.True(t, IsAppError(fmt.Errorf("wrapped: %w", NewConflictError("x"))))
	assert.False(t, IsAppError(errors.New("plain")))
}

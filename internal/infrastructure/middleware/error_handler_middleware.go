package middleware

import (
	"errors"
	"net/http"

	"sharecast/internal/core/domain"
	apperrors "sharecast/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToAppError maps share controller errors onto API errors.
func ToAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrShareBusy):
		return apperrors.NewShareBusyError()
	case errors.Is(err, domain.ErrNoActiveSession):
		return apperrors.NewNoActiveShareError()
	case errors.Is(err, domain.ErrPermissionDenied):
		return apperrors.WrapError(err, apperrors.ErrCodeCaptureCanceled, "screen capture was not granted", http.StatusConflict)
	case errors.Is(err, domain.ErrDeviceUnavailable), errors.Is(err, domain.ErrCaptureUnknown):
		return apperrors.WrapError(err, apperrors.ErrCodeCaptureFailed, "screen capture is unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrNothingPublished):
		return apperrors.WrapError(err, apperrors.ErrCodePublishFailed, "no track could be published", http.StatusBadGateway)
	default:
		return apperrors.WrapError(err, apperrors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}

// ErrorHandlerMiddleware handles application errors and returns appropriate HTTP responses
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := ToAppError(err)

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err,
			)
		} else {
			logger.Infow("request rejected",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
			)
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

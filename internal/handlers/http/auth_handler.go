package http

import (
	"net/http"
	"strings"
	"time"

	"sharecast/internal/core/services"
	"sharecast/pkg/errors"
	"sharecast/pkg/validation"

	"github.com/gin-gonic/gin"
)

// AuthHandler lets a controller mint tokens for other participants.
type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

// SetupRoutes registers token routes on an authenticated group.
func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/auth/token", h.IssueToken)
}

type TokenRequest struct {
	Subject string `json:"subject" binding:"required,max=64"`
	Role    string `json:"role" binding:"required"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if err := validation.ValidateSubject(req.Subject); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateRole(req.Role); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	token, err := h.authService.GenerateToken(req.Subject, services.Role(req.Role))
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to generate token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subject":      req.Subject,
		"role":         req.Role,
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}

package middleware

import (
	"net/http"
	"strings"

	"sharecast/internal/core/services"
	"sharecast/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	contextSubject = "subject"
	contextRole    = "role"
)

// extractToken reads a bearer token from the Authorization header, falling
// back to the access_token query parameter used by websocket clients.
func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(contextSubject, claims.Subject)
		c.Set(contextRole, claims.Role)
		c.Request = c.Request.WithContext(logger.WithSubject(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

// NoAuthMiddleware grants every caller the controller role. It is used when
// auth is disabled in config.
func NoAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextRole, services.RoleController)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated role allows required.
func RequireRole(required services.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasRole(c, required) {
			c.JSON(http.StatusForbidden, gin.H{"error": services.ErrForbidden.Error()})
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasRole reports whether the request's role allows required.
func HasRole(c *gin.Context, required services.Role) bool {
	value, exists := c.Get(contextRole)
	if !exists {
		return false
	}
	role, ok := value.(services.Role)
	return ok && role.Allows(required)
}

package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

// RequireAdmin ensures the authenticated principal carries the admin role.
func RequireAdmin() gin.HandlerFunc {
	return requireAdmin(false)
}

// RequireAdminOrCron also admits requests authenticated as the platform cron.
func RequireAdminOrCron() gin.HandlerFunc {
	return requireAdmin(true)
}

func requireAdmin(allowCron bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.ID == "" {
			responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		if allowCron && principal.AuthMethod == domain.AuthMethodCron {
			c.Next()
			return
		}
		if IsAdmin(c) {
			c.Next()
			return
		}
		responses.HandleAppError(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
}

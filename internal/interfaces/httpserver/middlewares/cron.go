package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

const (
	CronHeader      = "x-vercel-cron"
	CronPrincipalID = "cron"
)

// CronAuth marks requests from the platform scheduler. The request must send secret as a
// bearer token, and with no secret configured the cron header is refused outright.
// Requests without the cron header are left untouched.
func CronAuth(secret string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(CronHeader)) == "" {
			c.Next()
			return
		}
		if secret == "" {
			logger.Warn().Str("path", c.FullPath()).Msg("cron request refused, CRON_SECRET is not configured")
			responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Cron access is not configured", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(bearerToken(c)), []byte(secret)) != 1 {
			logger.Warn().Str("path", c.FullPath()).Msg("cron request with invalid secret")
			responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid cron secret", nil)
			return
		}
		setPrincipal(c, domain.Principal{
			ID:         CronPrincipalID,
			AuthMethod: domain.AuthMethodCron,
			Subject:    CronPrincipalID,
		})
		c.Next()
	}
}

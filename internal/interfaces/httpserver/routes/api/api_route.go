package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/config"
	"chatlima-server/internal/interfaces/httpserver/routes/api/account"
	"chatlima-server/internal/interfaces/httpserver/routes/api/admin"
	"chatlima-server/internal/interfaces/httpserver/routes/api/chat"
	"chatlima-server/internal/interfaces/httpserver/routes/api/model"
	"chatlima-server/internal/interfaces/httpserver/routes/api/pricing"
	"chatlima-server/internal/interfaces/httpserver/routes/auth"
)

type APIRoute struct {
	auth    *auth.AuthRoute
	model   *model.ModelRoute
	chat    *chat.ChatRoute
	account *account.AccountRoute
	pricing *pricing.PricingRoute
	admin   *admin.AdminRoute
}

func NewAPIRoute(
	auth *auth.AuthRoute,
	model *model.ModelRoute,
	chat *chat.ChatRoute,
	account *account.AccountRoute,
	pricing *pricing.PricingRoute,
	admin *admin.AdminRoute,
) *APIRoute {
	return &APIRoute{
		auth,
		model,
		chat,
		account,
		pricing,
		admin,
	}
}

func (apiRoute *APIRoute) RegisterRouter(router gin.IRouter) {
	apiRouter := router.Group("/api")
	apiRouter.GET("/version", GetVersion)

	apiRoute.auth.RegisterRouter(apiRouter)
	apiRoute.model.RegisterRouter(apiRouter)
	apiRoute.chat.RegisterRouter(apiRouter)
	apiRoute.account.RegisterRouter(apiRouter)
	apiRoute.pricing.RegisterRouter(apiRouter)
	apiRoute.admin.RegisterRouter(apiRouter)
}

// GetVersion returns the build version and when the environment was last reloaded.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":         config.Version,
		"env_reloaded_at": config.GetEnvReloadedAt().Format(time.RFC3339),
	})
}

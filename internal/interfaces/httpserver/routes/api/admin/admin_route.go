package admin

import (
	"github.com/gin-gonic/gin"

	"chatlima-server/internal/interfaces/httpserver/handlers/authhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/cleanuphandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/modelhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/usagehandler"
)

type AdminRoute struct {
	modelHandler   *modelhandler.ModelHandler
	cleanupHandler *cleanuphandler.CleanupHandler
	usageHandler   *usagehandler.UsageHandler
	authHandler    *authhandler.AuthHandler
}

func NewAdminRoute(
	modelHandler *modelhandler.ModelHandler,
	cleanupHandler *cleanuphandler.CleanupHandler,
	usageHandler *usagehandler.UsageHandler,
	authHandler *authhandler.AuthHandler,
) *AdminRoute {
	return &AdminRoute{
		modelHandler:   modelHandler,
		cleanupHandler: cleanupHandler,
		usageHandler:   usageHandler,
		authHandler:    authHandler,
	}
}

func (adminRoute *AdminRoute) RegisterRouter(router gin.IRouter) {
	auth := adminRoute.authHandler
	adminRouter := router.Group("/admin")

	adminRouter.POST("/models/blocklist/reload", auth.WithAdminChain(adminRoute.modelHandler.ReloadBlocklist)...)
	adminRouter.GET("/usage", auth.WithAdminChain(adminRoute.usageHandler.GetPlatformUsage)...)

	cleanupRouter := adminRouter.Group("/cleanup-users")
	{
		// The platform scheduler may also trigger execution.
		cleanupRouter.POST("/execute", auth.WithAdminOrCronChain(adminRoute.cleanupHandler.Execute)...)
		cleanupRouter.GET("/preview", auth.WithAdminChain(adminRoute.cleanupHandler.Preview)...)
		cleanupRouter.GET("/config", auth.WithAdminChain(adminRoute.cleanupHandler.GetConfig)...)
		cleanupRouter.PUT("/config", auth.WithAdminChain(adminRoute.cleanupHandler.UpdateConfig)...)
		cleanupRouter.GET("/logs", auth.WithAdminChain(adminRoute.cleanupHandler.ListLogs)...)
	}
}

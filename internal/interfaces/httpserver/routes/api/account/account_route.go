package account

import (
	"github.com/gin-gonic/gin"

	"chatlima-server/internal/interfaces/httpserver/handlers/authhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/credithandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/limithandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/usagehandler"
)

// AccountRoute serves the caller's credits, token usage and message limits.
type AccountRoute struct {
	creditHandler *credithandler.CreditHandler
	usageHandler  *usagehandler.UsageHandler
	limitHandler  *limithandler.LimitHandler
	authHandler   *authhandler.AuthHandler
}

func NewAccountRoute(
	creditHandler *credithandler.CreditHandler,
	usageHandler *usagehandler.UsageHandler,
	limitHandler *limithandler.LimitHandler,
	authHandler *authhandler.AuthHandler,
) *AccountRoute {
	return &AccountRoute{
		creditHandler: creditHandler,
		usageHandler:  usageHandler,
		limitHandler:  limitHandler,
		authHandler:   authHandler,
	}
}

func (r *AccountRoute) RegisterRouter(router gin.IRouter) {
	auth := r.authHandler
	router.GET("/credits", auth.WithAuthChain(r.creditHandler.GetCredits)...)

	usageGroup := router.Group("/usage")
	{
		usageGroup.GET("", auth.WithAuthChain(r.usageHandler.GetMyUsage)...)
		usageGroup.GET("/daily", auth.WithAuthChain(r.usageHandler.GetMyDailyUsage)...)
	}

	limits := router.Group("/limits")
	{
		limits.GET("/usage", auth.WithAuthChain(r.limitHandler.GetLimits)...)
		limits.PUT("/usage", auth.WithAdminChain(r.limitHandler.UpdateLimits)...)
	}
}

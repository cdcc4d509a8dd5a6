package pricing

import (
	"github.com/gin-gonic/gin"

	"chatlima-server/internal/interfaces/httpserver/handlers/authhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/pricinghandler"
)

type PricingRoute struct {
	pricingHandler *pricinghandler.PricingHandler
	authHandler    *authhandler.AuthHandler
}

func NewPricingRoute(pricingHandler *pricinghandler.PricingHandler, authHandler *authhandler.AuthHandler) *PricingRoute {
	return &PricingRoute{pricingHandler: pricingHandler, authHandler: authHandler}
}

func (r *PricingRoute) RegisterRouter(router gin.IRouter) {
	models := router.Group("/pricing/models")
	models.GET("", r.pricingHandler.ListPricing)
	models.PUT("", r.authHandler.WithAdminChain(r.pricingHandler.UpsertPricing)...)
}

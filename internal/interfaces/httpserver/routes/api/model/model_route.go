package model

import (
	"github.com/gin-gonic/gin"

	"chatlima-server/internal/interfaces/httpserver/handlers/authhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/modelhandler"
)

type ModelRoute struct {
	modelHandler *modelhandler.ModelHandler
	authHandler  *authhandler.AuthHandler
}

func NewModelRoute(modelHandler *modelhandler.ModelHandler, authHandler *authhandler.AuthHandler) *ModelRoute {
	return &ModelRoute{modelHandler: modelHandler, authHandler: authHandler}
}

// RegisterRouter mounts the public catalog. A bearer token is optional and only matters for ?refresh.
func (modelRoute *ModelRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/models", modelRoute.authHandler.OptionalAuth(), modelRoute.modelHandler.ListModels)
}

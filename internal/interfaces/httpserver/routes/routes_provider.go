package routes

import (
	"github.com/google/wire"

	"chatlima-server/internal/interfaces/httpserver/handlers"
	"chatlima-server/internal/interfaces/httpserver/routes/api"
	"chatlima-server/internal/interfaces/httpserver/routes/api/account"
	"chatlima-server/internal/interfaces/httpserver/routes/api/admin"
	"chatlima-server/internal/interfaces/httpserver/routes/api/chat"
	"chatlima-server/internal/interfaces/httpserver/routes/api/model"
	"chatlima-server/internal/interfaces/httpserver/routes/api/pricing"
	"chatlima-server/internal/interfaces/httpserver/routes/auth"
)

var RouteProvider = wire.NewSet(
	// Handlers
	handlers.HandlerProvider,

	// Routes
	auth.NewAuthRoute,
	api.NewAPIRoute,
	model.NewModelRoute,
	chat.NewChatRoute,
	account.NewAccountRoute,
	pricing.NewPricingRoute,
	admin.NewAdminRoute,
)

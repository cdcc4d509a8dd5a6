package handlers

import (
	"github.com/google/wire"

	"chatlima-server/internal/interfaces/httpserver/handlers/authhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/chathandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/cleanuphandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/credithandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/limithandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/modelhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/pricinghandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/usagehandler"
)

var HandlerProvider = wire.NewSet(
	authhandler.NewAuthHandler,
	chathandler.NewChatHandler,
	chathandler.NewHistoryHandler,
	modelhandler.NewModelHandler,
	credithandler.NewCreditHandler,
	usagehandler.NewUsageHandler,
	limithandler.NewLimitHandler,
	pricinghandler.NewPricingHandler,
	cleanuphandler.NewCleanupHandler,
)

package chat

import (
	"github.com/gin-gonic/gin"

	"chatlima-server/internal/interfaces/httpserver/handlers/authhandler"
	"chatlima-server/internal/interfaces/httpserver/handlers/chathandler"
)

type ChatRoute struct {
	chatHandler    *chathandler.ChatHandler
	historyHandler *chathandler.HistoryHandler
	authHandler    *authhandler.AuthHandler
}

func NewChatRoute(
	chatHandler *chathandler.ChatHandler,
	historyHandler *chathandler.HistoryHandler,
	authHandler *authhandler.AuthHandler,
) *ChatRoute {
	return &ChatRoute{
		chatHandler:    chatHandler,
		historyHandler: historyHandler,
		authHandler:    authHandler,
	}
}

func (chatRoute *ChatRoute) RegisterRouter(router gin.IRouter) {
	auth := chatRoute.authHandler
	router.POST("/chat", auth.WithAuthChain(chatRoute.chatHandler.PostChat)...)

	chats := router.Group("/chats")
	chats.GET("", auth.WithAuthChain(chatRoute.historyHandler.ListChats)...)
	chats.GET("/:id", auth.WithAuthChain(chatRoute.historyHandler.GetChat)...)
	chats.DELETE("/:id", auth.WithAuthChain(chatRoute.historyHandler.DeleteChat)...)
	chats.GET("/:id/export-pdf", auth.WithAuthChain(chatRoute.historyHandler.ExportPDF)...)
}

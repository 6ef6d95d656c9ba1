package router

import (
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/handler"
	"relaychat/internal/adapter/api/middleware"
)

func SetupMessageRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	messageHandler := handler.GetMessageHandler()

	messages := e.Group("/messages")
	messages.Use(authMiddleware.Authenticate)

	messages.POST("", messageHandler.SendMessage)
	messages.GET("/:chatId", messageHandler.ListMessages)
	messages.POST("/:messageId/reactions", messageHandler.ToggleReaction)
	messages.PUT("/:messageId/read", messageHandler.MarkRead)
}

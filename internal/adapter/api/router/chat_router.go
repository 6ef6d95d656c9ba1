package router

import (
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/handler"
	"relaychat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up direct and group chat routes
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()

	chats := e.Group("/chats")
	chats.Use(authMiddleware.Authenticate)

	chats.POST("", chatHandler.AccessChat)
	chats.GET("", chatHandler.ListChats)
	chats.POST("/group", chatHandler.CreateGroup)
	chats.GET("/:chatId", chatHandler.GetChat)

	// admin-gated group management; self-removal is allowed for members
	chats.PUT("/:chatId/rename", chatHandler.RenameGroup)
	chats.PUT("/:chatId/add", chatHandler.AddToGroup)
	chats.PUT("/:chatId/remove", chatHandler.RemoveFromGroup)
	chats.PUT("/:chatId/admin", chatHandler.TransferAdmin)
}

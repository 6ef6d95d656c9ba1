package router

import (
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/handler"
	"relaychat/internal/adapter/api/middleware"
)

func SetupUserRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	userHandler := handler.GetUserHandler()

	users := e.Group("/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("", userHandler.SearchUsers)
	users.GET("/profile", userHandler.GetProfile)
}

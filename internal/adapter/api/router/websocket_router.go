package router

import (
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/handler"
)

// SetupWebSocketRouter registers the push endpoint. Authentication happens
// inside the handler since browsers cannot set headers on upgrades.
func SetupWebSocketRouter(e *echo.Echo) {
	e.GET("/ws", handler.GetWebSocketHandler().HandleWebSocket)
}

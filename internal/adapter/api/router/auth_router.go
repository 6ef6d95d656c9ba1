package router

import (
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/handler"
	"relaychat/internal/adapter/api/middleware"
	"relaychat/internal/infrastructure/ratelimit"
)

// SetupAuthRouter registers the public auth routes, throttled per IP.
func SetupAuthRouter(e *echo.Echo, limiter middleware.Limiter) {
	authHandler := handler.GetAuthHandler()

	auth := e.Group("/auth")
	if limiter != nil {
		auth.Use(middleware.RateLimit(limiter, ratelimit.ActionAuth))
	}

	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
}

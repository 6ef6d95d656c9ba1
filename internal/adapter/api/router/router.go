package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"relaychat/internal/adapter/api"
	"relaychat/internal/adapter/api/middleware"
	"relaychat/pkg/response"
)

type Options struct {
	AllowedOrigin string
	// BodyLimit uses echo's size syntax, e.g. "12M". Empty disables the limit.
	BodyLimit string
	// MediaDir is served under /media when set.
	MediaDir string
}

// NewEcho returns an echo instance with the shared middleware stack, error
// envelope and validator installed.
func NewEcho(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Validator = api.NewValidator()

	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{origin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if opts.BodyLimit != "" {
		e.Use(echomw.BodyLimit(opts.BodyLimit))
	}

	if opts.MediaDir != "" {
		e.Static("/media", opts.MediaDir)
	}

	return e
}

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter middleware.Limiter) {
	SetupAuthRouter(e, limiter)
	SetupUserRouter(e, authMiddleware)
	SetupChatRouter(e, authMiddleware)
	SetupMessageRouter(e, authMiddleware)
	SetupWebSocketRouter(e)
	SetupHealthRouter(e)
}

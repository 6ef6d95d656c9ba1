package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/middleware"
	ws "relaychat/internal/infrastructure/websocket"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

type WebSocketHandler struct {
	broker         *ws.Broker
	authMiddleware *middleware.AuthMiddleware
	requireToken   bool
	upgrader       gorillaws.Upgrader
}

// NewWebSocketHandler accepts upgrades from allowedOrigin, or from any origin
// when it is empty or "*".
func NewWebSocketHandler(broker *ws.Broker, authMiddleware *middleware.AuthMiddleware, allowedOrigin string, requireToken bool) *WebSocketHandler {
	return &WebSocketHandler{
		broker:         broker,
		authMiddleware: authMiddleware,
		requireToken:   requireToken,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// HandleWebSocket upgrades the request and serves the socket until it closes.
// A token in ?token= or the Authorization header binds the connection to
// that user.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = middleware.BearerToken(c.Request())
	}

	var boundUserID string
	if token != "" {
		uid, err := h.authMiddleware.Resolve(c.Request().Context(), token)
		if err != nil {
			return err
		}
		boundUserID = uid
	} else if h.requireToken {
		return errors.Unauthenticated("Authentication required", nil)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logger.Warn("WebSocket upgrade failed from %s: %v", c.RealIP(), err)
		return nil
	}

	h.broker.Serve(c.Request().Context(), conn, boundUserID)
	return nil
}

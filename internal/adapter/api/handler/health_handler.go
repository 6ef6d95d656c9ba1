package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "relaychat/internal/infrastructure/websocket"
)

type HealthHandler struct {
	broker *ws.Broker
}

func NewHealthHandler(broker *ws.Broker) *HealthHandler {
	return &HealthHandler{
		broker: broker,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"connections": h.broker.ConnectionCount(),
	})
}

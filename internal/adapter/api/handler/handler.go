package handler

import (
	"relaychat/internal/adapter/api/middleware"
	ws "relaychat/internal/infrastructure/websocket"
	"relaychat/internal/usecase"
)

var (
	authHandler      *AuthHandler
	userHandler      *UserHandler
	chatHandler      *ChatHandler
	messageHandler   *MessageHandler
	websocketHandler *WebSocketHandler
	healthHandler    *HealthHandler
)

type Options struct {
	AllowedOrigin  string
	RequireWSToken bool
}

func Setup(
	authUseCase *usecase.AuthUseCase,
	userUseCase *usecase.UserUseCase,
	chatUseCase *usecase.ChatUseCase,
	messageUseCase *usecase.MessageUseCase,
	broker *ws.Broker,
	authMiddleware *middleware.AuthMiddleware,
	opts Options,
) {
	authHandler = NewAuthHandler(authUseCase)
	userHandler = NewUserHandler(userUseCase)
	chatHandler = NewChatHandler(chatUseCase)
	messageHandler = NewMessageHandler(messageUseCase)
	websocketHandler = NewWebSocketHandler(broker, authMiddleware, opts.AllowedOrigin, opts.RequireWSToken)
	healthHandler = NewHealthHandler(broker)
}

func GetAuthHandler() *AuthHandler {
	return authHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetMessageHandler() *MessageHandler {
	return messageHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return websocketHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

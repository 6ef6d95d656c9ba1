package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/middleware"
	"relaychat/internal/usecase"
	"relaychat/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type accessChatRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type createGroupRequest struct {
	Name  string   `json:"name" validate:"required,max=200"`
	Users []string `json:"users" validate:"required,min=2,dive,required"`
}

type renameGroupRequest struct {
	Name     string `json:"name"`
	ChatName string `json:"chatName"`
}

type memberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (h *ChatHandler) AccessChat(c echo.Context) error {
	var req accessChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, err := h.chatUseCase.AccessChat(c.Request().Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) ListChats(c echo.Context) error {
	chats, err := h.chatUseCase.ListChats(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chats)
}

func (h *ChatHandler) GetChat(c echo.Context) error {
	chat, err := h.chatUseCase.GetChat(c.Request().Context(), middleware.UserID(c), c.Param("chatId"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) CreateGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, err := h.chatUseCase.CreateGroup(c.Request().Context(), middleware.UserID(c), usecase.CreateGroupInput{
		Name:  req.Name,
		Users: req.Users,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, chat)
}

func (h *ChatHandler) RenameGroup(c echo.Context) error {
	var req renameGroupRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	name := req.Name
	if name == "" {
		name = req.ChatName
	}

	chat, err := h.chatUseCase.RenameGroup(c.Request().Context(), middleware.UserID(c), c.Param("chatId"), name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) AddToGroup(c echo.Context) error {
	return h.memberOp(c, h.chatUseCase.AddToGroup)
}

func (h *ChatHandler) RemoveFromGroup(c echo.Context) error {
	return h.memberOp(c, h.chatUseCase.RemoveFromGroup)
}

func (h *ChatHandler) TransferAdmin(c echo.Context) error {
	return h.memberOp(c, h.chatUseCase.TransferAdmin)
}

type memberOperation func(ctx context.Context, userID, chatID, memberID string) (*usecase.ChatResponse, error)

func (h *ChatHandler) memberOp(c echo.Context, op memberOperation) error {
	var req memberRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, err := op(c.Request().Context(), middleware.UserID(c), c.Param("chatId"), req.UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chat)
}

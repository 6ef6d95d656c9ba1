package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/middleware"
	"relaychat/internal/usecase"
	"relaychat/pkg/errors"
	"relaychat/pkg/response"
	"relaychat/pkg/utils"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId" validate:"required"`
	Content string `json:"content"`
	Type    string `json:"type" validate:"omitempty,oneof=text image video audio file"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// SendMessage accepts a JSON body, or multipart/form-data with a "file" part
// and a "chatId" field.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return h.sendMedia(c)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.messageUseCase.SendMessage(c.Request().Context(), middleware.UserID(c), usecase.SendMessageInput{
		ChatID:  req.ChatID,
		Content: req.Content,
		Type:    req.Type,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

func (h *MessageHandler) sendMedia(c echo.Context) error {
	chatID := c.FormValue("chatId")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// no file part: fall back to a text message carried in the form
		msg, err := h.messageUseCase.SendMessage(c.Request().Context(), middleware.UserID(c), usecase.SendMessageInput{
			ChatID:  chatID,
			Content: c.FormValue("content"),
			Type:    c.FormValue("type"),
		})
		if err != nil {
			return response.Error(c, err)
		}
		return response.Created(c, msg)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read uploaded file", err))
	}
	defer file.Close()

	msg, err := h.messageUseCase.SendMedia(c.Request().Context(), middleware.UserID(c), usecase.SendMediaInput{
		ChatID: chatID,
		File:   file,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

func (h *MessageHandler) ListMessages(c echo.Context) error {
	params := utils.GetPaginationParams(c)

	messages, total, err := h.messageUseCase.ListMessages(
		c.Request().Context(),
		middleware.UserID(c),
		c.Param("chatId"),
		params.PageSize,
		params.Offset,
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

func (h *MessageHandler) ToggleReaction(c echo.Context) error {
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.messageUseCase.ToggleReaction(c.Request().Context(), middleware.UserID(c), c.Param("messageId"), req.Emoji)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, msg)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	msg, err := h.messageUseCase.MarkRead(c.Request().Context(), middleware.UserID(c), c.Param("messageId"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, msg)
}

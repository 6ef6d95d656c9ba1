package usecase

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/internal/infrastructure/ratelimit"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

const (
	maxContentLength = 5000
	maxEmojiLength   = 16
)

type MessageUseCase struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	media       *MediaUploader
	publisher   EventPublisher
	rateLimiter RateLimiter
}

func NewMessageUseCase(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	media *MediaUploader,
	publisher EventPublisher,
	rateLimiter RateLimiter,
) *MessageUseCase {
	return &MessageUseCase{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		media:       media,
		publisher:   publisherOrNoop(publisher),
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	ChatID  string
	Content string
	Type    string
}

type SendMediaInput struct {
	ChatID string
	File   io.Reader
}

func (uc *MessageUseCase) SendMessage(ctx context.Context, userID string, input SendMessageInput) (*MessageResponse, error) {
	input.Content = strings.TrimSpace(input.Content)
	if input.ChatID == "" {
		return nil, errors.InvalidArgument("chatId is required", nil)
	}
	if input.Content == "" {
		return nil, errors.InvalidArgument("Message content or file is required", nil)
	}
	if utf8.RuneCountInString(input.Content) > maxContentLength {
		return nil, errors.InvalidArgument("Message is too long", nil)
	}
	if input.Type == "" {
		input.Type = entity.MessageTypeText
	}
	if !entity.IsValidMessageType(input.Type) {
		return nil, errors.InvalidArgument("Unknown message type "+input.Type, nil)
	}

	if err := checkRate(uc.rateLimiter, userID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}

	chat, err := uc.memberChat(ctx, userID, input.ChatID)
	if err != nil {
		return nil, err
	}

	return uc.store(ctx, userID, chat, input.Content, input.Type)
}

// SendMedia uploads the attachment and posts it as a message. The upload
// happens before the message is created; a failed upload creates nothing.
func (uc *MessageUseCase) SendMedia(ctx context.Context, userID string, input SendMediaInput) (*MessageResponse, error) {
	if input.ChatID == "" {
		return nil, errors.InvalidArgument("chatId is required", nil)
	}
	if input.File == nil {
		return nil, errors.InvalidArgument("Message content or file is required", nil)
	}
	if uc.media == nil {
		return nil, errors.UploadFailed("Media uploads are not configured", nil)
	}

	if err := checkRate(uc.rateLimiter, userID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}

	chat, err := uc.memberChat(ctx, userID, input.ChatID)
	if err != nil {
		return nil, err
	}

	uploaded, err := uc.media.Upload(ctx, input.File, "chats/"+chat.ID)
	if err != nil {
		return nil, err
	}

	resp, err := uc.store(ctx, userID, chat, uploaded.URL, uploaded.MessageType)
	if err != nil {
		uc.media.Discard(ctx, uploaded.URL)
		return nil, err
	}
	return resp, nil
}

func (uc *MessageUseCase) ListMessages(ctx context.Context, userID, chatID string, limit, offset int) ([]*MessageResponse, int64, error) {
	if _, err := uc.memberChat(ctx, userID, chatID); err != nil {
		return nil, 0, err
	}

	messages, total, err := uc.messageRepo.ListByChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	users, err := uc.userRepo.GetByIDs(ctx, entity.UniqueUsers(senderIDs))
	if err != nil {
		return nil, 0, err
	}

	out := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, &MessageResponse{Message: m, Sender: profileOf(users, m.SenderID)})
	}
	return out, total, nil
}

func (uc *MessageUseCase) MarkRead(ctx context.Context, userID, messageID string) (*MessageResponse, error) {
	msg, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	chat, err := uc.memberChat(ctx, userID, msg.ChatID)
	if err != nil {
		return nil, err
	}

	updated, err := uc.messageRepo.MarkRead(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	return uc.describe(ctx, updated, chat)
}

// ToggleReaction adds the user's emoji to the message, or removes it when
// already present, and tells every chat member.
func (uc *MessageUseCase) ToggleReaction(ctx context.Context, userID, messageID, emoji string) (*MessageResponse, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, errors.InvalidArgument("Emoji is required", nil)
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLength {
		return nil, errors.InvalidArgument("Malformed emoji", nil)
	}

	msg, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := checkRate(uc.rateLimiter, userID, ratelimit.ActionReaction); err != nil {
		return nil, err
	}

	chat, err := uc.memberChat(ctx, userID, msg.ChatID)
	if err != nil {
		return nil, err
	}

	updated, err := uc.messageRepo.ToggleReaction(ctx, messageID, emoji, userID)
	if err != nil {
		logger.Error("ToggleReaction Error: message %s: %v", messageID, err)
		return nil, err
	}

	resp, err := uc.describe(ctx, updated, chat)
	if err != nil {
		return nil, err
	}
	uc.publisher.PublishReaction(chat.ID, updated.ID, chat.Users, resp)
	return resp, nil
}

func (uc *MessageUseCase) store(ctx context.Context, userID string, chat *entity.Chat, content, msgType string) (*MessageResponse, error) {
	msg := &entity.Message{
		ChatID:    chat.ID,
		SenderID:  userID,
		Content:   content,
		Type:      msgType,
		ReadBy:    []string{userID},
		Reactions: []entity.Reaction{},
	}
	if err := uc.messageRepo.Create(ctx, msg); err != nil {
		logger.Error("SendMessage Error: create in chat %s: %v", chat.ID, err)
		return nil, err
	}
	chat.LatestMessageID = msg.ID

	resp, err := uc.describe(ctx, msg, chat)
	if err != nil {
		return nil, err
	}
	uc.publisher.PublishNewMessage(chat.ID, userID, chat.Users, resp)
	return resp, nil
}

func (uc *MessageUseCase) describe(ctx context.Context, msg *entity.Message, chat *entity.Chat) (*MessageResponse, error) {
	sender, err := uc.userRepo.GetByID(ctx, msg.SenderID)
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}
	users := map[string]*entity.User{}
	if sender != nil {
		users[sender.ID] = sender
	}
	return &MessageResponse{
		Message: msg,
		Sender:  profileOf(users, msg.SenderID),
		Chat:    summarize(chat),
	}, nil
}

func (uc *MessageUseCase) memberChat(ctx context.Context, userID, chatID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, errors.Forbidden("You are not a member of this chat", nil)
	}
	return chat, nil
}

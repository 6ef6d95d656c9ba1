package repository

import (
	"context"

	"relaychat/internal/domain/entity"
)

// GroupMutation edits a freshly read group chat inside a store transaction.
// Returning an error aborts the write.
type GroupMutation func(chat *entity.Chat) error

type ChatRepository interface {
	// FindDirectChat returns the direct chat between a and b, or a NotFound error.
	FindDirectChat(ctx context.Context, a, b string) (*entity.Chat, error)
	// CreateDirectChat creates the direct chat between a and b. When a
	// concurrent caller won the race it returns the existing chat instead.
	CreateDirectChat(ctx context.Context, a, b string) (*entity.Chat, error)
	CreateGroup(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	// ListByUserID returns the user's chats, most recently updated first.
	ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error)
	UpdateGroup(ctx context.Context, chatID string, fn GroupMutation) (*entity.Chat, error)
}

type MessageRepository interface {
	// Create stores the message and points its chat's latest message at it
	// in the same write. A missing chat is a NotFound error and stores nothing.
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// ListByChat returns messages oldest first.
	ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)
	// ToggleReaction applies entity.ToggleReaction atomically and returns the updated message.
	ToggleReaction(ctx context.Context, messageID, emoji, userID string) (*entity.Message, error)
	// MarkRead adds userID to readBy with set semantics.
	MarkRead(ctx context.Context, messageID, userID string) (*entity.Message, error)
}

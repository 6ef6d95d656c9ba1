package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

const chatsCollection = "chats"

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) chats() *firestore.CollectionRef {
	return r.client.Collection(chatsCollection)
}

// Direct chats live under a deterministic document id so the store itself
// rejects a second chat for the same pair.
func (r *firestoreChatRepository) FindDirectChat(ctx context.Context, a, b string) (*entity.Chat, error) {
	return r.GetByID(ctx, entity.DirectKeyFor(a, b))
}

func (r *firestoreChatRepository) CreateDirectChat(ctx context.Context, a, b string) (*entity.Chat, error) {
	key := entity.DirectKeyFor(a, b)
	now := time.Now()
	chat := &entity.Chat{
		ID:          key,
		ChatName:    "sender",
		IsGroupChat: false,
		Users:       []string{a, b},
		DirectKey:   key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.chats().Doc(key).Create(ctx, chat)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Direct chat %s already exists, returning it", key)
			return r.GetByID(ctx, key)
		}
		return nil, errors.Internal("Failed to create chat", err)
	}

	return chat, nil
}

func (r *firestoreChatRepository) CreateGroup(ctx context.Context, chat *entity.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	now := time.Now()
	chat.IsGroupChat = true
	chat.CreatedAt = now
	chat.UpdatedAt = now

	_, err := r.chats().Doc(chat.ID).Set(ctx, chat)
	if err != nil {
		return errors.Internal("Failed to create chat", err)
	}

	return nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.chats().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}
	return &chat, nil
}

func (r *firestoreChatRepository) ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error) {
	iter := r.chats().
		Where("users", "array-contains", userID).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	chats := make([]*entity.Chat, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while listing chats for user %s: %v", userID, err)
			return nil, errors.Internal("Failed to list chats", err)
		}

		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			return nil, errors.Internal("Failed to parse chat data", err)
		}
		chats = append(chats, &chat)
	}

	return chats, nil
}

// UpdateGroup re-reads the chat inside a transaction, so authority checks in
// fn always see the stored admin. Firestore may run fn more than once.
func (r *firestoreChatRepository) UpdateGroup(ctx context.Context, chatID string, fn repository.GroupMutation) (*entity.Chat, error) {
	ref := r.chats().Doc(chatID)
	var updated *entity.Chat

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Chat", err)
			}
			return err
		}

		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			return err
		}
		if err := fn(&chat); err != nil {
			return err
		}
		chat.UpdatedAt = time.Now()

		updated = &chat
		return tx.Set(ref, &chat)
	})
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.Internal("Failed to update chat", err)
	}

	return updated, nil
}

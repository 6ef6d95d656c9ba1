package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/errors"
)

type ChatRepository struct {
	mu    sync.RWMutex
	chats map[string]*entity.Chat
	// direct key -> chat id
	direct map[string]string
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		chats:  make(map[string]*entity.Chat),
		direct: make(map[string]string),
	}
}

func (r *ChatRepository) FindDirectChat(ctx context.Context, a, b string) (*entity.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.direct[entity.DirectKeyFor(a, b)]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return cloneChat(r.chats[id]), nil
}

func (r *ChatRepository) CreateDirectChat(ctx context.Context, a, b string) (*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entity.DirectKeyFor(a, b)
	if id, ok := r.direct[key]; ok {
		return cloneChat(r.chats[id]), nil
	}

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
	r.chats[chat.ID] = chat
	r.direct[key] = chat.ID
	return cloneChat(chat), nil
}

func (r *ChatRepository) CreateGroup(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now()
	chat.IsGroupChat = true
	chat.CreatedAt = now
	chat.UpdatedAt = now

	r.chats[chat.ID] = cloneChat(chat)
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chat, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return cloneChat(chat), nil
}

func (r *ChatRepository) ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chats := make([]*entity.Chat, 0)
	for _, chat := range r.chats {
		if chat.HasMember(userID) {
			chats = append(chats, cloneChat(chat))
		}
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (r *ChatRepository) UpdateGroup(ctx context.Context, chatID string, fn repository.GroupMutation) (*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.chats[chatID]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}

	working := cloneChat(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()

	r.chats[chatID] = working
	return cloneChat(working), nil
}

func (r *ChatRepository) SetLatestMessage(ctx context.Context, chatID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}
	chat.LatestMessageID = messageID
	chat.UpdatedAt = time.Now()
	return nil
}

func cloneChat(c *entity.Chat) *entity.Chat {
	out := *c
	out.Users = append([]string(nil), c.Users...)
	return &out
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/entity"
	"relaychat/pkg/errors"
)

type MessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*entity.Message
	chats    *ChatRepository
}

// NewMessageRepository moves the latest-message pointer of chats on every
// Create. A nil chats stores messages without touching any chat.
func NewMessageRepository(chats *ChatRepository) *MessageRepository {
	return &MessageRepository{
		messages: make(map[string]*entity.Message),
		chats:    chats,
	}
}

func (r *MessageRepository) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if r.chats != nil {
		if err := r.chats.SetLatestMessage(ctx, message.ChatID, message.ID); err != nil {
			return err
		}
	}

	now := time.Now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = now
	if message.Reactions == nil {
		message.Reactions = []entity.Reaction{}
	}

	r.messages[message.ID] = cloneMessage(message)
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return cloneMessage(m), nil
}

func (r *MessageRepository) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make([]*entity.Message, 0)
	for _, m := range r.messages {
		if m.ChatID == chatID {
			messages = append(messages, cloneMessage(m))
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	total := int64(len(messages))
	return paginate(messages, limit, offset), total, nil
}

func (r *MessageRepository) ToggleReaction(ctx context.Context, messageID, emoji, userID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	m.Reactions = entity.ToggleReaction(m.Reactions, emoji, userID)
	m.UpdatedAt = time.Now()
	return cloneMessage(m), nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	if !m.IsReadBy(userID) {
		m.ReadBy = append(m.ReadBy, userID)
		m.UpdatedAt = time.Now()
	}
	return cloneMessage(m), nil
}

func cloneMessage(m *entity.Message) *entity.Message {
	out := *m
	out.ReadBy = append([]string(nil), m.ReadBy...)
	out.Reactions = make([]entity.Reaction, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		out.Reactions = append(out.Reactions, entity.Reaction{Emoji: r.Emoji, Users: append([]string(nil), r.Users...)})
	}
	return &out
}

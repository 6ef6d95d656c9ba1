package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"relaychat/internal/adapter/repository/memory"
	"relaychat/internal/domain/entity"
	"relaychat/internal/infrastructure/auth"
)

type published struct {
	kind    string
	chatID  string
	members []string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) PublishNewMessage(chatID, senderID string, memberIDs []string, message interface{}) {
	p.record(published{"new message", chatID, memberIDs, message})
}

func (p *fakePublisher) PublishReaction(chatID, messageID string, memberIDs []string, message interface{}) {
	p.record(published{"reaction", chatID, memberIDs, message})
}

func (p *fakePublisher) PublishChatUpdated(memberIDs []string, chat interface{}) {
	p.record(published{"chat updated", "", memberIDs, chat})
}

func (p *fakePublisher) EvictFromChat(chatID string, userIDs []string) {
	p.record(published{"evict", chatID, userIDs, nil})
}

func (p *fakePublisher) record(e published) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakePublisher) of(kind string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// stubLimiter denies the listed actions.
type stubLimiter map[string]bool

func (s stubLimiter) Allow(subject, action string) (bool, time.Duration) {
	if s[action] {
		return false, time.Second
	}
	return true, 0
}

type testEnv struct {
	users     *memory.UserRepository
	chats     *memory.ChatRepository
	messages  *memory.MessageRepository
	publisher *fakePublisher
	limiter   stubLimiter
	jwt       *auth.JWTManager

	auth    *AuthUseCase
	user    *UserUseCase
	chat    *ChatUseCase
	message *MessageUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	chats := memory.NewChatRepository()
	env := &testEnv{
		users:     memory.NewUserRepository(),
		chats:     chats,
		messages:  memory.NewMessageRepository(chats),
		publisher: &fakePublisher{},
		limiter:   stubLimiter{},
		jwt: auth.NewJWTManager(auth.JWTConfig{
			SecretKey:     "test-secret",
			TokenDuration: time.Hour,
			Issuer:        "relaychat-test",
		}),
	}

	media := NewMediaUploader(&fakeStore{}, t.TempDir(), 1<<20)
	env.auth = NewAuthUseCase(env.users, auth.NewPasswordHasherWithCost(bcrypt.MinCost), env.jwt, env.jwt)
	env.user = NewUserUseCase(env.users)
	env.chat = NewChatUseCase(env.chats, env.users, env.messages, env.publisher, env.limiter)
	env.message = NewMessageUseCase(env.chats, env.messages, env.users, media, env.publisher, env.limiter)
	return env
}

func (env *testEnv) seedUser(t *testing.T, name string) *entity.User {
	t.Helper()
	u := &entity.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, env.users.Create(context.Background(), u))
	return u
}

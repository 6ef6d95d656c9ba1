package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/adapter/repository/memory"
	"relaychat/internal/domain/entity"
)

func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })

	return New(client, "test:"+uuid.New().String()+":", time.Minute)
}

func TestCacheSetGetDelete(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	var out map[string]string
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", map[string]string{"a": "b"}))
	hit, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "b", out["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	hit, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestUserRepositoryInvalidatesOnPresence(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	inner := memory.NewUserRepository()
	repo := NewUserRepository(inner, c)

	u := &entity.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, u))

	first, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PresenceOffline, first.OnlineStatus)

	require.NoError(t, repo.UpdatePresence(ctx, u.ID, entity.PresenceOnline, time.Now()))

	second, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PresenceOnline, second.OnlineStatus)

	cached, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PresenceOnline, cached.OnlineStatus)
	assert.Empty(t, cached.PasswordHash)

	many, err := repo.GetByIDs(ctx, []string{u.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
	assert.Equal(t, "alice", many[u.ID].Username)
}

// slowUsers holds store reads open until release is closed.
type slowUsers struct {
	*memory.UserRepository
	once    sync.Once
	reading chan struct{}
	release chan struct{}
}

func (s *slowUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.UserRepository.GetByID(ctx, id)
	s.once.Do(func() { close(s.reading) })
	<-s.release
	return u, err
}

func TestStaleReadIsNotCachedAfterPresenceChange(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	inner := &slowUsers{
		UserRepository: memory.NewUserRepository(),
		reading:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	repo := NewUserRepository(inner, c)

	u := &entity.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, repo.Create(ctx, u))

	stale := make(chan *entity.User, 1)
	go func() {
		got, err := repo.GetByID(ctx, u.ID)
		assert.NoError(t, err)
		stale <- got
	}()
	<-inner.reading

	require.NoError(t, repo.UpdatePresence(ctx, u.ID, entity.PresenceOnline, time.Now()))
	close(inner.release)
	assert.Equal(t, entity.PresenceOffline, (<-stale).OnlineStatus)

	var cached cachedUser
	hit, err := c.Get(ctx, u.ID, &cached)
	require.NoError(t, err)
	assert.False(t, hit, "a read that overlapped the update must not be cached")

	fresh, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PresenceOnline, fresh.OnlineStatus)
}

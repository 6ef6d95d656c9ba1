package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/logger"
)

// cachedUser is the cached form of a user. It never carries the password
// hash, so only lookups that do not need it go through the cache.
type cachedUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar,omitempty"`
	OnlineStatus string    `json:"onlineStatus"`
	LastSeen     time.Time `json:"lastSeen"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toCached(u *entity.User) cachedUser {
	return cachedUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Avatar:       u.Avatar,
		OnlineStatus: u.OnlineStatus,
		LastSeen:     u.LastSeen,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (c cachedUser) toEntity() *entity.User {
	return &entity.User{
		ID:           c.ID,
		Username:     c.Username,
		Email:        c.Email,
		Avatar:       c.Avatar,
		OnlineStatus: c.OnlineStatus,
		LastSeen:     c.LastSeen,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// UserRepository decorates a user store with a read-through profile cache.
// Cache failures are logged and fall through to the store.
type UserRepository struct {
	repository.UserRepository
	cache *Cache

	// epoch counts invalidations. A store read that overlaps one is not
	// written back, so a stale profile cannot outlive the invalidation.
	mu    sync.RWMutex
	epoch uint64
}

func NewUserRepository(inner repository.UserRepository, cache *Cache) *UserRepository {
	return &UserRepository{
		UserRepository: inner,
		cache:          cache,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var cached cachedUser
	hit, err := r.cache.Get(ctx, id, &cached)
	if err != nil {
		logger.Warn("Profile cache read failed for %s: %v", id, err)
	}
	if hit {
		return cached.toEntity(), nil
	}

	epoch := r.currentEpoch()
	user, err := r.UserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, epoch, user)
	return user, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User, len(ids))

	raw, err := r.cache.GetMany(ctx, ids)
	if err != nil {
		logger.Warn("Profile cache batch read failed: %v", err)
		raw = map[string][]byte{}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var cached cachedUser
		if err := json.Unmarshal(data, &cached); err != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = cached.toEntity()
	}

	if len(missing) == 0 {
		return out, nil
	}

	epoch := r.currentEpoch()
	loaded, err := r.UserRepository.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, user := range loaded {
		out[id] = user
		r.store(ctx, epoch, user)
	}
	return out, nil
}

func (r *UserRepository) UpdatePresence(ctx context.Context, id, status string, lastSeen time.Time) error {
	if err := r.UserRepository.UpdatePresence(ctx, id, status, lastSeen); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	if err := r.cache.Delete(ctx, id); err != nil {
		logger.Warn("Profile cache invalidation failed for %s: %v", id, err)
	}
	return nil
}

func (r *UserRepository) currentEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// store caches user unless an invalidation happened since epoch was read.
func (r *UserRepository) store(ctx context.Context, epoch uint64, user *entity.User) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.epoch != epoch {
		return
	}
	if err := r.cache.Set(ctx, user.ID, toCached(user)); err != nil {
		logger.Warn("Profile cache write failed for %s: %v", user.ID, err)
	}
}

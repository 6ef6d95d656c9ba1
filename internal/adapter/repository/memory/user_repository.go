// Package memory provides process-local repositories for STORE_DRIVER=memory
// and for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/entity"
	"relaychat/pkg/errors"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*entity.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.EmailLower = strings.ToLower(user.Email)
	user.UsernameLower = strings.ToLower(user.Username)

	for _, u := range r.users {
		if u.EmailLower == user.EmailLower {
			return errors.Conflict("Email already registered")
		}
		if u.UsernameLower == user.UsernameLower {
			return errors.Conflict("Username already taken")
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, exists := r.users[user.ID]; exists {
		return errors.Conflict("User already exists")
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.OnlineStatus == "" {
		user.OnlineStatus = entity.PresenceOffline
	}

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return cloneUser(u), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.users {
		if u.EmailLower == email {
			return cloneUser(u), nil
		}
	}
	return nil, errors.NotFound("User", nil)
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*entity.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}

func (r *UserRepository) Search(ctx context.Context, keyword, excludeID string, limit, offset int) ([]*entity.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	matches := make([]*entity.User, 0)
	for _, u := range r.users {
		if u.ID == excludeID {
			continue
		}
		if keyword != "" && !strings.HasPrefix(u.UsernameLower, keyword) && !strings.HasPrefix(u.EmailLower, keyword) {
			continue
		}
		matches = append(matches, cloneUser(u))
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UsernameLower < matches[j].UsernameLower
	})

	total := int64(len(matches))
	return paginate(matches, limit, offset), total, nil
}

func (r *UserRepository) UpdatePresence(ctx context.Context, id, status string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return errors.NotFound("User", nil)
	}
	u.OnlineStatus = status
	u.LastSeen = lastSeen
	u.UpdatedAt = time.Now()
	return nil
}

func cloneUser(u *entity.User) *entity.User {
	c := *u
	return &c
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

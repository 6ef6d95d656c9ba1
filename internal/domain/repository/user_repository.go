package repository

import (
	"context"
	"time"

	"relaychat/internal/domain/entity"
)

type UserRepository interface {
	// Create stores a new user. It fails with a Conflict error when the email
	// or username is already taken (case-insensitive).
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// GetByIDs returns the users that exist, keyed by id. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error)
	// Search matches a case-insensitive prefix of username or email.
	Search(ctx context.Context, keyword, excludeID string, limit, offset int) ([]*entity.User, int64, error)
	UpdatePresence(ctx context.Context, id, status string, lastSeen time.Time) error
}

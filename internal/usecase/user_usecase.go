package usecase

import (
	"context"
	"time"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/errors"
)

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

// Search lists other users whose username or email starts with keyword.
func (uc *UserUseCase) Search(ctx context.Context, callerID, keyword string, limit, offset int) ([]*entity.PublicProfile, int64, error) {
	users, total, err := uc.userRepo.Search(ctx, keyword, callerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	profiles := make([]*entity.PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}
	return profiles, total, nil
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}

// PresenceUseCase persists presence changes reported by the socket broker.
type PresenceUseCase struct {
	userRepo repository.UserRepository
}

func NewPresenceUseCase(userRepo repository.UserRepository) *PresenceUseCase {
	return &PresenceUseCase{
		userRepo: userRepo,
	}
}

func (uc *PresenceUseCase) SetPresence(ctx context.Context, userID, status string, at time.Time) error {
	switch status {
	case entity.PresenceOnline, entity.PresenceOffline, entity.PresenceAway:
	default:
		return errors.InvalidArgument("Unknown presence status", nil)
	}
	return uc.userRepo.UpdatePresence(ctx, userID, status, at)
}

package usecase

import (
	"context"
	"strings"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/repository"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

type AuthUseCase struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	issuer    TokenIssuer
	verifiers []TokenVerifier
}

// NewAuthUseCase takes the verifiers tried in order when resolving a bearer
// token. The issuer's own tokens should come first.
func NewAuthUseCase(userRepo repository.UserRepository, hasher PasswordHasher, issuer TokenIssuer, verifiers ...TokenVerifier) *AuthUseCase {
	return &AuthUseCase{
		userRepo:  userRepo,
		hasher:    hasher,
		issuer:    issuer,
		verifiers: verifiers,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Avatar   string
}

type AuthResult struct {
	User  *entity.User `json:"user"`
	Token string       `json:"token"`
}

func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, errors.InvalidArgument("Username, email and password are required", nil)
	}

	hash, err := uc.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Internal("Failed to hash password", err)
	}

	user := &entity.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Avatar:       input.Avatar,
		OnlineStatus: entity.PresenceOffline,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, errors.CodeConflict) {
			logger.Error("Register Error: failed to create user %s: %v", input.Email, err)
		}
		return nil, err
	}

	token, err := uc.issuer.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, errors.Internal("Failed to generate authentication token", err)
	}

	logger.Info("Registered user %s", user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := uc.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.Unauthenticated("Invalid email or password", nil)
		}
		return nil, err
	}

	if !uc.hasher.Verify(password, user.PasswordHash) {
		return nil, errors.Unauthenticated("Invalid email or password", nil)
	}

	token, err := uc.issuer.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, errors.Internal("Failed to generate authentication token", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// ResolveToken returns the id of the user the token belongs to. The user
// must exist in the store whichever verifier accepted the token.
func (uc *AuthUseCase) ResolveToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.Unauthenticated("Authorization token is required", nil)
	}

	var lastErr error
	for _, v := range uc.verifiers {
		uid, err := v.VerifyToken(ctx, token)
		if err != nil {
			lastErr = err
			continue
		}

		if _, err := uc.userRepo.GetByID(ctx, uid); err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				return "", errors.Unauthenticated("Unknown user", err)
			}
			return "", err
		}
		return uid, nil
	}

	return "", errors.Unauthenticated("Invalid or expired token", lastErr)
}

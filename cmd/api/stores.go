package main

import (
	"context"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"relaychat/internal/adapter/repository"
	"relaychat/internal/adapter/repository/memory"
	domainrepo "relaychat/internal/domain/repository"
	"relaychat/internal/domain/service"
	"relaychat/internal/infrastructure/cache"
	"relaychat/internal/infrastructure/firebase"
	"relaychat/internal/infrastructure/storage"
	"relaychat/internal/usecase"
	"relaychat/pkg/config"
	"relaychat/pkg/logger"
)

// stores holds the persistence and media backends chosen by STORE_DRIVER,
// plus the optional Firebase token verifier.
type stores struct {
	users    domainrepo.UserRepository
	chats    domainrepo.ChatRepository
	messages domainrepo.MessageRepository
	media    service.MediaStore
	mediaDir string
	firebase usecase.TokenVerifier

	closers []func() error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("Close error: %v", err)
		}
	}
}

func credentials(cfg *config.Config) []option.ClientOption {
	switch {
	case cfg.FirebaseServiceAccountJSON != "":
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))}
	case cfg.FirebaseServiceAccountPath != "":
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)}
	default:
		logger.Info("Using application default credentials")
		return nil
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	switch cfg.StoreDriver {
	case config.StoreFirestore:
		if err := s.openFirestore(ctx, cfg); err != nil {
			s.close()
			return nil, err
		}
	case config.StoreMemory:
		logger.Warn("Using in-memory store; data is lost on restart")
		chats := memory.NewChatRepository()
		s.users = memory.NewUserRepository()
		s.chats = chats
		s.messages = memory.NewMessageRepository(chats)
	}

	if s.media == nil {
		dir := filepath.Join(cfg.UploadTmpDir, "relaychat-media")
		local, err := storage.NewLocalStore(dir, "/media")
		if err != nil {
			s.close()
			return nil, err
		}
		s.media = local
		s.mediaDir = local.Dir()
		s.closers = append(s.closers, local.Close)
	}

	if cfg.RedisAddr != "" {
		s.users = s.withProfileCache(ctx, cfg, s.users)
	}

	return s, nil
}

func (s *stores) openFirestore(ctx context.Context, cfg *config.Config) error {
	opts := credentials(cfg)

	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Firestore client: %w", err)
	}
	s.closers = append(s.closers, fsClient.Close)

	s.users = repository.NewFirestoreUserRepository(fsClient)
	s.chats = repository.NewFirestoreChatRepository(fsClient)
	s.messages = repository.NewFirestoreMessageRepository(fsClient)

	if cfg.FirebaseAuthEnabled {
		app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase: %w", err)
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase Auth: %w", err)
		}
		s.firebase = firebase.NewFirebaseAuthClient(authClient)
	}

	if cfg.StorageBucket != "" {
		gcs, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opts...)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloud Storage: %w", err)
		}
		s.media = gcs
		s.closers = append(s.closers, gcs.Close)
	}

	return nil
}

// withProfileCache wraps users with the Redis read-through cache. An
// unreachable Redis leaves the repository uncached.
func (s *stores) withProfileCache(ctx context.Context, cfg *config.Config, users domainrepo.UserRepository) domainrepo.UserRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	c := cache.New(client, "relaychat:", cfg.ProfileCacheTTL)
	if err := c.Ping(ctx); err != nil {
		logger.Warn("Redis at %s unreachable, profile cache disabled: %v", cfg.RedisAddr, err)
		client.Close()
		return users
	}

	logger.Info("Profile cache enabled (redis %s, ttl %v)", cfg.RedisAddr, cfg.ProfileCacheTTL)
	s.closers = append(s.closers, client.Close)
	return cache.NewUserRepository(users, c)
}

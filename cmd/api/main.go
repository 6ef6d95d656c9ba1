package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/sync/errgroup"

	"relaychat/internal/adapter/api/handler"
	apimiddleware "relaychat/internal/adapter/api/middleware"
	"relaychat/internal/adapter/api/router"
	"relaychat/internal/infrastructure/auth"
	"relaychat/internal/infrastructure/ratelimit"
	"relaychat/internal/infrastructure/websocket"
	"relaychat/internal/usecase"
	"relaychat/pkg/config"
	"relaychat/pkg/logger"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Configure(cfg.Environment)

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open stores: %v", err)
	}

	limiter := ratelimit.NewRateLimiter(nil)

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:     cfg.JWTSecret,
		TokenDuration: time.Duration(cfg.JWTExpiry) * time.Second,
		Issuer:        cfg.JWTIssuer,
	})
	verifiers := []usecase.TokenVerifier{jwtManager}
	if st.firebase != nil {
		verifiers = append(verifiers, st.firebase)
	}

	presenceUseCase := usecase.NewPresenceUseCase(st.users)
	broker := websocket.NewBroker(
		presenceUseCase,
		usecase.NewMembershipChecker(st.chats),
		limiter,
		websocket.BrokerConfig{
			PingTimeout: cfg.WSPingTimeout,
			SendBuffer:  cfg.WSSendBuffer,
		},
	)

	media := usecase.NewMediaUploader(st.media, cfg.UploadTmpDir, cfg.UploadMaxBytes)

	authUseCase := usecase.NewAuthUseCase(st.users, auth.NewPasswordHasher(), jwtManager, verifiers...)
	userUseCase := usecase.NewUserUseCase(st.users)
	chatUseCase := usecase.NewChatUseCase(st.chats, st.users, st.messages, broker, limiter)
	messageUseCase := usecase.NewMessageUseCase(st.chats, st.messages, st.users, media, broker, limiter)

	authMiddleware := apimiddleware.NewAuthMiddleware(authUseCase)

	handler.Setup(authUseCase, userUseCase, chatUseCase, messageUseCase, broker, authMiddleware, handler.Options{
		AllowedOrigin:  cfg.FrontendURL,
		RequireWSToken: cfg.WSRequireToken,
	})

	e := router.NewEcho(router.Options{
		AllowedOrigin: cfg.FrontendURL,
		// multipart overhead on top of the largest accepted file
		BodyLimit: strconv.FormatInt(cfg.UploadMaxBytes/1024+1024, 10) + "K",
		MediaDir:  st.mediaDir,
	})
	e.Logger = logger.Logger()
	router.Setup(e, authMiddleware, limiter)

	bgCtx, stopBackground := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bgCtx)

	g.Go(func() error {
		logger.Info("Starting server on port %s (store=%s)...", cfg.ServerPort, cfg.StoreDriver)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return limiter.Run(gctx, limiterCleanupInterval)
	})

	go func() {
		<-gctx.Done()
		if bgCtx.Err() == nil {
			// a background task failed before shutdown was requested
			if err := g.Wait(); err != nil {
				logger.Fatal("Server stopped: %v", err)
			}
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			logger.Info("Graceful shutdown initiated...")
			err := e.Shutdown(ctx)
			broker.Close()
			return err
		},
		"background": func(ctx context.Context) error {
			stopBackground()
			return nil
		},
	})

	exitCode := <-wait
	if err := g.Wait(); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
	st.close()

	logger.Info("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

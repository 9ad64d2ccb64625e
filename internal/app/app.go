package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"identity-service/internal/cache"
	"identity-service/internal/config"
	"identity-service/internal/database"
	"identity-service/internal/handler"
	"identity-service/internal/logger"
	"identity-service/internal/middleware"
	"identity-service/internal/provider"
	"identity-service/internal/repository"
	"identity-service/internal/router"
	"identity-service/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	redisClient  *redis.Client
	tokenStore   *service.RefreshTokenStore
	sweepEvery   time.Duration
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(cfg.IsProduction())

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	redisClient, err := cache.NewClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	tokenRepo := repository.NewTokenRepository(db.Pool)
	userCache := cache.NewUserCache(redisClient)

	directory := service.NewDirectory(userRepo, userCache, cfg.CacheTTL)
	tokenStore := service.NewRefreshTokenStore(tokenRepo, cfg.RefreshTTL)
	issuer := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL)
	hasher := service.NewPasswordHasher(0)
	authService := service.NewAuthService(directory, tokenStore, issuer, hasher)

	providers := provider.NewRegistry(
		provider.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.PublicBaseURL+"/api/v1/auth/google/callback", cfg.ProviderTimeout),
		provider.NewYandex(cfg.YandexClientID, cfg.YandexClientSecret,
			cfg.PublicBaseURL+"/api/v1/auth/yandex/callback", cfg.ProviderTimeout),
	)

	authMiddleware := middleware.NewAuthMiddleware(issuer)
	authHandler := handler.NewAuthHandler(authService, providers, issuer.AccessTTL(), cfg.IsProduction())
	userHandler := handler.NewUserHandler(directory, tokenStore)

	appRouter := router.New(cfg, authMiddleware, authHandler, userHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server:      server,
		db:          db,
		redisClient: redisClient,
		tokenStore:  tokenStore,
		sweepEvery:  cfg.TokenSweepInterval,
		cleanupFuncs: []func(){
			func() { db.Close() },
			func() { _ = redisClient.Close() },
		},
	}, nil
}

func (a *App) Run() error {
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go a.sweepExpiredTokens(sweepCtx)

	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sweepCancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Backends close only after in-flight requests have drained.
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}

// sweepExpiredTokens drops expired refresh records on an interval so the
// table does not accumulate dead sessions. Rotation already deletes expired
// records lazily; this is the background catch-all.
func (a *App) sweepExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(a.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.tokenStore.SweepExpired(ctx)
			if err != nil {
				slog.Warn("expired token sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired refresh tokens removed", "count", removed)
			}
		}
	}
}

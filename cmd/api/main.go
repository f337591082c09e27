package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/clickcoin/user-directory/internal/api/http"
	"github.com/clickcoin/user-directory/internal/api/http/handlers"
	"github.com/clickcoin/user-directory/internal/auth"
	"github.com/clickcoin/user-directory/internal/config"
	"github.com/clickcoin/user-directory/internal/events"
	"github.com/clickcoin/user-directory/internal/observability"
	"github.com/clickcoin/user-directory/internal/persistence"
	"github.com/clickcoin/user-directory/internal/repository"
	"github.com/clickcoin/user-directory/internal/service"
	"github.com/clickcoin/user-directory/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(*cfg, userRepo, dispatcher)
	userService := service.NewUserService(*cfg, userRepo, redis, dispatcher, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notify)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
		RequestTimeout:   cfg.App.RequestTimeout(),
	})

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService)
	usersHandler := handlers.NewUsersHandler(userService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           authHandler,
		Users:          usersHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

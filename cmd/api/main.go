package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-gate/internal/api/http"
	"github.com/spec-kit/auth-gate/internal/api/http/handlers"
	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/config"
	"github.com/spec-kit/auth-gate/internal/events"
	"github.com/spec-kit/auth-gate/internal/observability"
	"github.com/spec-kit/auth-gate/internal/persistence"
	"github.com/spec-kit/auth-gate/internal/repository"
	"github.com/spec-kit/auth-gate/internal/service"
	"github.com/spec-kit/auth-gate/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	var dependencies []handlers.Dependency

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	if redis != nil {
		dependencies = append(dependencies, handlers.Dependency{Name: "redis", Pinger: redis})
	}

	var identities repository.IdentityRepository
	switch cfg.Auth.IdentityStore {
	case config.IdentityStoreRedis:
		identities = repository.NewRedisIdentityRepository(redis.Client)
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		dependencies = append(dependencies, handlers.Dependency{Name: "postgres", Pinger: pg})

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		identities = repository.NewPostgresIdentityRepository(pg.PoolHandle())
	}
	logger.Info("identity store selected", zap.String("store", cfg.Auth.IdentityStore))

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret),
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithDefaultTTL(cfg.Auth.AccessTokenTTL()))
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}

	policy, err := auth.NewPolicy(httptransport.DefaultRules(), logger, metrics)
	if err != nil {
		logger.Fatal("invalid access policy", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	auditCtx, stopAudit := context.WithCancel(ctx)
	defer stopAudit()
	auditWorker := worker.NewAuditWorker(service.NewAuditService(logger), logger, 0)
	auditWorker.Start(auditCtx, dispatcher)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Identities: identities,
		Tokens:     codec,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		CaseSensitive:         true,
		StrictRouting:         true,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.CORS)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies...),
		Auth:          handlers.NewAuthHandler(authService),
		Content:       handlers.NewContentHandler(),
		Users:         handlers.NewUsersHandler(),
		Authenticator: auth.NewAuthenticator(codec, identities, logger, metrics),
		Policy:        policy,
		Metrics:       metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}

	stopAudit()
	select {
	case <-auditWorker.Done():
	case <-time.After(5 * time.Second):
		logger.Warn("audit worker did not drain in time")
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/visit-service/internal/api/http"
	"github.com/spec-kit/visit-service/internal/api/http/handlers"
	"github.com/spec-kit/visit-service/internal/auth"
	"github.com/spec-kit/visit-service/internal/config"
	"github.com/spec-kit/visit-service/internal/events"
	"github.com/spec-kit/visit-service/internal/observability"
	"github.com/spec-kit/visit-service/internal/persistence"
	"github.com/spec-kit/visit-service/internal/repository"
	"github.com/spec-kit/visit-service/internal/scheduling"
	"github.com/spec-kit/visit-service/internal/service"
	"github.com/spec-kit/visit-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.MigrationSource(cfg.Postgres.MigrationsDir), logger); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	rules, err := scheduling.RulesFromConfig(cfg.Scheduling)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
	if cfg.Kafka.Enabled() {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		worker.StartEventForwarder(dispatcher, publisher, logger)
	}

	directory := repository.NewCachedDirectory(
		repository.NewPersonRepository(pg.Pool),
		redis.Client,
		cfg.Redis.DirectoryTTL(),
		logger,
	)
	appointmentService := service.NewAppointmentService(service.AppointmentDependencies{
		Store:      repository.NewAppointmentRepository(pg.Pool, cfg.Scheduling.TxTimeout()),
		Directory:  directory,
		Window:     rules.Window,
		Conflicts:  rules.Conflicts,
		DailyLimit: rules.DailyLimit,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	logger.Info("scheduling rules loaded",
		zap.String("window", rules.Window.Describe()),
		zap.Int("daily_limit", rules.DailyLimit.Cap),
		zap.Duration("conflict_window", rules.Conflicts.Window))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Appointments:   handlers.NewAppointmentsHandler(appointmentService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-assistant/internal/api/http"
	"github.com/spec-kit/ticket-assistant/internal/api/http/handlers"
	"github.com/spec-kit/ticket-assistant/internal/auth"
	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/config"
	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/integrations/llm"
	"github.com/spec-kit/ticket-assistant/internal/integrations/mail"
	"github.com/spec-kit/ticket-assistant/internal/integrations/slack"
	"github.com/spec-kit/ticket-assistant/internal/observability"
	"github.com/spec-kit/ticket-assistant/internal/persistence"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	"github.com/spec-kit/ticket-assistant/internal/service"
	"github.com/spec-kit/ticket-assistant/internal/worker"
)

const shutdownTimeout = 15 * time.Second

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()

	rdb, err := persistence.NewRedisClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("invalid redis configuration", zap.Error(err))
	}
	var store redis.UniversalClient
	if rdb != nil {
		store = rdb
	}
	cacheClient := cache.NewClient(store, logger)
	if err := cacheClient.Connect(ctx); err != nil && !errors.Is(err, cache.ErrNotConfigured) {
		logger.Warn("cache unavailable at startup; continuing without it", zap.Error(err))
	}
	defer cacheClient.Close() //nolint:errcheck

	appCache := cache.New(cacheClient, logger, cache.Options{
		OpTimeout:      cfg.Cache.OpTimeout(),
		ScanBatchSize:  int64(cfg.Cache.ScanBatchSize),
		MaxScanBatches: cfg.Cache.MaxScanBatches,
		Recorder:       metrics,
	})
	ttl := cache.NewTTLPolicy(cfg.Cache)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	requestRepo := repository.NewModeratorRequestRepository(pool)

	mailer, err := mail.NewMailer(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("invalid mail configuration", zap.Error(err))
	}
	notifier := slack.NewNotifier(cfg.Slack, logger)
	classifier := llm.NewClassifier(cfg.LLM, logger)

	dispatcher := events.NewInMemoryDispatcher(logger)

	userService := service.NewUserService(*cfg, service.UserDependencies{
		UserRepo:   userRepo,
		Cache:      appCache,
		TTL:        ttl,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		UserRepo:   userRepo,
		TicketRepo: ticketRepo,
		Cache:      appCache,
		TTL:        ttl,
		Policy:     cfg.Assignment,
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		UserRepo:    userRepo,
		Completion:  assignmentService,
		Cache:       appCache,
		TTL:         ttl,
		Dispatcher:  dispatcher,
		Mailer:      mailer,
		Logger:      logger,
	})
	requestService := service.NewModeratorRequestService(service.ModeratorRequestDependencies{
		RequestRepo: requestRepo,
		UserRepo:    userRepo,
		Cache:       appCache,
		Mailer:      mailer,
		Logger:      logger,
	})
	analysisService := service.NewTicketAnalysisService(service.TicketAnalysisDependencies{
		TicketRepo: ticketRepo,
		Classifier: classifier,
		Assigner:   assignmentService,
		Cache:      appCache,
		Mailer:     mailer,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		UserRepo: userRepo,
		Mailer:   mailer,
		Chat:     notifier,
		Logger:   logger,
	})

	analysisPool := worker.NewPool("ticket-analysis", cfg.Worker, logger, worker.WithPermanentErrors(worker.IsPermanent))
	notificationPool := worker.NewPool("notifications", cfg.Worker, logger)
	worker.StartTicketAnalysisWorker(dispatcher, analysisPool, analysisService, logger)
	worker.StartNotificationWorker(dispatcher, notificationPool, notificationService)
	analysisPool.Start(ctx)
	notificationPool.Start(ctx)

	scheduler, err := worker.NewScheduler(ctx, cfg.Cache, cacheClient, assignmentService, logger)
	if err != nil {
		logger.Fatal("invalid schedule", zap.Error(err))
	}
	scheduler.Start()

	authMiddleware := auth.NewAuthMiddleware(userService.TokenManager(), userService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, cacheClient, metrics),
		Users:             handlers.NewUsersHandler(userService),
		Tickets:           handlers.NewTicketsHandler(ticketService),
		ModeratorRequests: handlers.NewModeratorRequestsHandler(requestService),
		AuthMiddleware:    authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
	if err := analysisPool.Stop(shutdownCtx); err != nil {
		logger.Warn("analysis workers did not drain", zap.Error(err))
	}
	if err := notificationPool.Stop(shutdownCtx); err != nil {
		logger.Warn("notification workers did not drain", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

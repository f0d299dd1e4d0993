package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-service/internal/api/http"
	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/service"
	"github.com/spec-kit/repair-service/internal/worker"
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

	metrics := observability.NewMetrics()

	store, err := persistence.OpenStore(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: store.Notifications,
		UserRepo:         store.Users,
		Dispatcher:       dispatcher,
		UnreadCache:      redis.UnreadCache(cfg.Notification.UnreadCacheTTL()),
		Logger:           logger,
		Metrics:          metrics,
		Config:           cfg.Notification,
	})
	worker.StartNotificationWorker(notificationService)

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		Transactor:  store.Transactor,
		TicketRepo:  store.Tickets,
		UserRepo:    store.Users,
		CommentRepo: store.Comments,
		PartRepo:    store.Parts,
		HistoryRepo: store.History,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
		OverdueDays: cfg.Workflow.OverdueThresholdDays,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Transactor:  store.Transactor,
		TicketRepo:  store.Tickets,
		UserRepo:    store.Users,
		HistoryRepo: store.History,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
		OverdueDays: cfg.Workflow.OverdueThresholdDays,
	})
	statisticsService := service.NewStatisticsService(store.Tickets, cfg.Workflow.OverdueThresholdDays, nil)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: store.Users,
		Logger:   logger,
	})
	if _, err := authService.EnsureBootstrapManager(ctx); err != nil {
		logger.Fatal("failed to bootstrap manager account", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users)

	checks := map[string]handlers.Pinger{}
	if store.Backend == persistence.BackendPostgres {
		checks["postgres"] = store.Postgres
	}
	if redis != nil {
		checks["redis"] = redis
	}

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store.Backend, checks),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(workflowService),
		Escalations:    handlers.NewEscalationHandler(assignmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Statistics:     handlers.NewStatisticsHandler(statisticsService),
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,
	})

	digestDone := worker.StartOverdueDigest(ctx, assignmentService, cfg.Workflow.DigestInterval(), logger)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("service started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("storage", store.Backend),
	)

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	<-digestDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

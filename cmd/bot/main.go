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

	httptransport "github.com/siberialabel/telegram-support-bot/internal/api/http"
	"github.com/siberialabel/telegram-support-bot/internal/api/http/handlers"
	"github.com/siberialabel/telegram-support-bot/internal/auth"
	"github.com/siberialabel/telegram-support-bot/internal/config"
	"github.com/siberialabel/telegram-support-bot/internal/engine"
	"github.com/siberialabel/telegram-support-bot/internal/events"
	"github.com/siberialabel/telegram-support-bot/internal/observability"
	"github.com/siberialabel/telegram-support-bot/internal/persistence"
	"github.com/siberialabel/telegram-support-bot/internal/queue"
	"github.com/siberialabel/telegram-support-bot/internal/store"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
	"github.com/siberialabel/telegram-support-bot/internal/worker"
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

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer cleanup()

	directiveQueue := queue.NewDirectiveQueue(cfg.Redis, logger)
	defer directiveQueue.Close()

	metrics := observability.NewMetrics("support_bot")

	dispatcher := events.NewInMemoryDispatcher()
	events.NewNotifier(dispatcher, logger).RegisterHandlers()

	limiter := engine.NewRateLimiter(st, cfg.Bot.ReportCooldown())
	adminPolicy := engine.NewAdminPolicy(cfg.Bot.AdminUserID, st, dispatcher)
	tickets := engine.NewTicketService(engine.TicketDependencies{
		Store:      st,
		Limiter:    limiter,
		Admin:      adminPolicy,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	conversation := engine.NewConversation(st, limiter, adminPolicy)
	eng := engine.NewEngine(st, tickets, conversation, adminPolicy, logger)

	deliverer := transport.NewWebhookDeliverer(
		cfg.Delivery.WebhookURL,
		time.Duration(cfg.Delivery.TimeoutSeconds)*time.Second,
		logger,
	)
	deliveryWorker := worker.NewDeliveryWorker(directiveQueue, deliverer, metrics, logger)
	go deliveryWorker.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	adminMiddleware := auth.NewAdminMiddleware(tokens, cfg.Bot.AdminUserID)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	flood := httptransport.NewFloodLimiter(time.Second, 20)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), flood)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st, directiveQueue),
		Events:          handlers.NewEventsHandler(eng, directiveQueue, logger),
		Admin:           handlers.NewAdminHandler(eng, tokens, deliverer, cfg.Bot.AdminUserID, cfg.Auth.AdminPasswordHash),
		AdminMiddleware: adminMiddleware,
		Metrics:         metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

// openStore selects the persistence backend from configuration. The returned
// cleanup closes whatever the driver opened.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return store.NewPgStore(pg.PoolHandle()), pg.Close, nil
	default:
		fs, err := store.OpenFileStore(cfg.Store.FilePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

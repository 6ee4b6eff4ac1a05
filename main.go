package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreybb/dispatch/api"
	"github.com/coreybb/dispatch/config"
	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/metrics"
	"github.com/coreybb/dispatch/reminder"
	rh "github.com/coreybb/dispatch/route-handlers"
	"github.com/coreybb/dispatch/scheduler"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	redisPingTimeout = 3 * time.Second
	shutdownTimeout  = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := datastore.OpenDatabase(ctx, cfg.DBDriver, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal("database setup failed", zap.Error(err))
	}
	defer db.Close()
	if err := datastore.EnsurePermissionSchema(ctx, db, cfg.DBDriver); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}
	logger.Info("database connection successful", zap.String("driver", cfg.DBDriver))

	templateCatalog := datastore.NewTemplateCatalog()
	groupDirectory := datastore.NewGroupDirectory()
	permissionChangeRepo := datastore.NewPermissionChangeRepository(db, cfg.DBDriver)

	// Initialize reminder fan-out
	dispatcher := reminder.NewDispatcher(
		setupLedger(ctx, cfg, logger),
		cfg.ReminderCooldown,
		logger.Named("reminder"),
		reminder.NewLogProvider(logger.Named("reminder")),
	)

	bulkRecorder := metrics.NewRecorder()
	deliveryStore := datastore.NewDeliveryStore(templateCatalog, groupDirectory,
		datastore.WithReminderSender(dispatcher),
		datastore.WithObserver(bulkRecorder),
		datastore.WithLogger(logger.Named("store")),
	)

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, templateCatalog, groupDirectory, deliveryStore); err != nil {
			logger.Fatal("seeding demo data failed", zap.Error(err))
		}
		logger.Info("demo data seeded")
	}

	deliveryHandler := rh.NewDeliveryHandler(deliveryStore)
	catalogHandler := rh.NewCatalogHandler(templateCatalog, groupDirectory)
	permissionChangeHandler := rh.NewPermissionChangeHandler(permissionChangeRepo)

	apiRouter := api.SetupRoutes(
		deliveryHandler,
		catalogHandler,
		permissionChangeHandler,
		cfg.CORSAllowedOrigins,
	)

	// Initialize scheduler
	deliveryScheduler := scheduler.New(deliveryStore, logger)
	go deliveryScheduler.Run(ctx, cfg.SchedulerInterval)

	registry := metrics.NewRegistry(deliveryStore, bulkRecorder)

	mainRouter := chi.NewRouter()
	mainRouter.Mount("/", apiRouter)

	mainRouter.Post("/scheduler/tick", deliveryScheduler.HandleTick)
	mainRouter.Handle("/metrics", metrics.Handler(registry))

	startServer(ctx, cfg.Port, mainRouter, logger)

	// Let in-flight reminders finish before exiting.
	dispatcher.Wait()
	logger.Info("reminders drained")
}

func setupLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) reminder.Ledger {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, reminder cooldowns are process-local")
		return reminder.NewMemoryLedger()
	}

	client := reminder.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to process-local reminder cooldowns",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return reminder.NewMemoryLedger()
	}
	logger.Info("reminder cooldowns shared through redis", zap.String("addr", cfg.RedisAddr))
	return reminder.NewRedisLedger(client)
}

func startServer(ctx context.Context, port string, router http.Handler, logger *zap.Logger) {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done() // Block until signal received
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}

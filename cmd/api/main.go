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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aquaflowhq/aquaflow-backend/api/routes"
	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/installations"
	"github.com/aquaflowhq/aquaflow-backend/internal/installsync"
	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	"github.com/aquaflowhq/aquaflow-backend/internal/payments"
	"github.com/aquaflowhq/aquaflow-backend/internal/products"
	"github.com/aquaflowhq/aquaflow-backend/internal/roster"
	"github.com/aquaflowhq/aquaflow-backend/internal/servicerequests"
	"github.com/aquaflowhq/aquaflow-backend/internal/subscriptions"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
	"github.com/aquaflowhq/aquaflow-backend/pkg/migrate"
	"github.com/aquaflowhq/aquaflow-backend/pkg/razorpay"
	"github.com/aquaflowhq/aquaflow-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "aquaflow-api"})

	cfg, err := config.Load()
	exitOnError(logg, "load configuration", err)

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logg = logger.New(logger.Options{
		ServiceName: "aquaflow-api",
		Level:       level,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOnError(logg, "connect to postgres", err)
	defer dbClient.Close()

	exitOnError(logg, "run migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	exitOnError(logg, "connect to redis", err)
	defer redisClient.Close()

	gateway, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
	exitOnError(logg, "init razorpay client", err)

	registry := prometheus.NewRegistry()
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)

	gormDB := dbClient.DB()

	rosterSvc, err := roster.NewService(roster.NewRepository(gormDB))
	exitOnError(logg, "init roster service", err)

	guard, err := authz.NewGuard(rosterSvc)
	exitOnError(logg, "init authz guard", err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	exitOnError(logg, "init ledger service", err)

	synchronizer, err := installsync.NewSynchronizer(ledgerSvc)
	exitOnError(logg, "init installation synchronizer", err)

	notifier, err := notifications.NewService(notifications.NewRepository(gormDB), logg)
	exitOnError(logg, "init notifications service", err)

	paymentsSvc, err := payments.NewService(payments.NewRepository(gormDB), gateway, ledgerSvc, dbClient, logg)
	exitOnError(logg, "init payments service", err)

	productsSvc, err := products.NewService(products.NewRepository(gormDB), guard)
	exitOnError(logg, "init products service", err)

	subscriptionsRepo := subscriptions.NewRepository(gormDB)

	subscriptionsSvc, err := subscriptions.NewService(subscriptionsRepo, guard, ledgerSvc, dbClient)
	exitOnError(logg, "init subscriptions service", err)

	serviceRequestsSvc, err := servicerequests.NewService(
		servicerequests.NewRepository(gormDB),
		guard,
		rosterSvc,
		ledgerSvc,
		synchronizer,
		payments.NewRepository(gormDB),
		paymentsSvc,
		subscriptionsRepo,
		dbClient,
	)
	exitOnError(logg, "init service requests service", err)

	installationsSvc, err := installations.NewService(
		installations.NewRepository(gormDB),
		guard,
		rosterSvc,
		products.NewRepository(gormDB),
		paymentsSvc,
		subscriptionsRepo,
		servicerequests.NewRepository(gormDB),
		ledgerSvc,
		synchronizer,
		notifier,
		dbClient,
		logg,
		lifecycleMetrics,
	)
	exitOnError(logg, "init installations service", err)

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Guard:         guard,
		Products:      productsSvc,
		Installations: installationsSvc,
		Services:      serviceRequestsSvc,
		Subscriptions: subscriptionsSvc,
		SubsRepo:      subscriptionsRepo,
		Payments:      paymentsSvc,
		Notifications: notifier,
		Metrics:       registry,
	})

	port := cfg.App.Port
	if fromEnv := os.Getenv("PORT"); fromEnv != "" {
		port = fromEnv
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	logg.Info(logg.WithFields(ctx, map[string]any{"port": port, "env": cfg.App.Env}), "api server listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exitOnError(logg, "serve http", err)
	}

	logg.Info(context.Background(), "api server stopped")
}

func exitOnError(logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to %s", what), err)
	os.Exit(1)
}

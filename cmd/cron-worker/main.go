package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/internal/cron"
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
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
	"github.com/aquaflowhq/aquaflow-backend/pkg/razorpay"
	"github.com/aquaflowhq/aquaflow-backend/pkg/redis"
)

// systemActorID attributes ledger entries written by scheduled jobs.
var systemActorID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://aquaflowhq.in/system/cron-worker"))

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "aquaflow-cron-worker"})

	cfg, err := config.Load()
	exitOnError(logg, "load configuration", err)

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logg = logger.New(logger.Options{
		ServiceName: "aquaflow-cron-worker",
		Level:       level,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOnError(logg, "connect to postgres", err)
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	exitOnError(logg, "connect to redis", err)
	defer redisClient.Close()

	gateway, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
	exitOnError(logg, "init razorpay client", err)

	registry := prometheus.NewRegistry()
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

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

	paymentsRepo := payments.NewRepository(gormDB)

	paymentsSvc, err := payments.NewService(paymentsRepo, gateway, ledgerSvc, dbClient, logg)
	exitOnError(logg, "init payments service", err)

	subscriptionsRepo := subscriptions.NewRepository(gormDB)

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

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(gormDB),
	})
	exitOnError(logg, "init notification cleanup job", err)

	billingJob, err := cron.NewBillingDueJob(cron.BillingDueJobParams{
		Logger:        logg,
		Subscriptions: subscriptionsRepo,
		Payments:      paymentsSvc,
	})
	exitOnError(logg, "init billing due job", err)

	refreshJob, err := cron.NewPaymentRefreshJob(cron.PaymentRefreshJobParams{
		Logger:          logg,
		Payments:        paymentsRepo,
		Installations:   installationsSvc,
		Subscriptions:   subscriptionsRepo,
		ServiceRequests: servicerequests.NewRepository(gormDB),
		Settler:         paymentsSvc,
		Actor:           authz.Actor{UserID: systemActorID, Role: enums.RoleAdmin},
		Limit:           cfg.Cron.RefreshBatch,
	})
	exitOnError(logg, "init payment refresh job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	exitOnError(logg, "init cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(cleanupJob, billingJob, refreshJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	exitOnError(logg, "init cron service", err)

	logg.Info(logg.WithFields(ctx, map[string]any{
		"interval": cfg.Cron.Interval.String(),
		"env":      cfg.App.Env,
	}), "cron worker starting")

	if err := service.Run(ctx); err != nil && ctx.Err() == nil {
		exitOnError(logg, "run cron service", err)
	}

	logg.Info(context.Background(), "cron worker stopped")
}

func exitOnError(logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to %s", what), err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/naijamart/storefront-backend/internal/app"
	"github.com/naijamart/storefront-backend/internal/cron"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/metrics"
)

const (
	retentionEvery        = 24 * time.Hour
	notificationRetention = 90 * 24 * time.Hour
	outboxRetention       = 30 * 24 * time.Hour
	reconcileBatchSize    = 100
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(ctx, "cron worker exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) (err error) {
	rt, err := app.Boot(ctx, "cron-worker", app.WithRedis(), app.WithDevMigrations())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.Logger.Error(ctx, "closing resources", cerr)
		}
	}()

	services, err := app.Build(app.Params{
		Config:     rt.Config,
		Logger:     rt.Logger,
		DB:         rt.DB,
		Redis:      rt.Redis,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer services.Tickets.Shutdown()

	jobs, err := schedule(rt, services)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockName(rt.Config.App.Env)), 0)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: rt.Config.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = rt.Logger.WithFields(ctx, rt.Fields())
	rt.Logger.Info(ctx, "starting cron worker")
	defer rt.Logger.Info(ctx, "cron worker stopped")
	return service.Run(ctx)
}

// schedule registers the hourly jobs plus the daily maintenance sweeps.
func schedule(rt *app.Runtime, services *app.Services) (*cron.Registry, error) {
	cfg, logg := rt.Config, rt.Logger
	reconcile, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:     logg,
		Payments:   services.Payments,
		PendingTTL: cfg.Payments.PendingTTL,
		BatchSize:  reconcileBatchSize,
	})
	if err != nil {
		return nil, err
	}
	autoclose, err := cron.NewTicketAutoCloseJob(logg, services.Tickets)
	if err != nil {
		return nil, err
	}
	registry := cron.NewRegistry(reconcile, autoclose)

	audit, err := cron.NewWalletAuditJob(logg, services.Wallet)
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         rt.DB,
		Repository: services.NotificationsRepo,
		Retention:  notificationRetention,
	})
	if err != nil {
		return nil, err
	}
	outboxCleanup, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          rt.DB,
		Repository:  services.OutboxRepo,
		Retention:   outboxRetention,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	for _, job := range []cron.Job{audit, notificationCleanup, outboxCleanup} {
		registry.RegisterEvery(job, retentionEvery)
	}
	return registry, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

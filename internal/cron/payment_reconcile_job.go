package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/naijamart/storefront-backend/internal/payments"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const (
	defaultPendingTTL     = 24 * time.Hour
	defaultReconcileBatch = 100
)

// PaymentReconcileJobParams configure the stale pending payment sweep.
type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Payments   staleReconciler
	PendingTTL time.Duration
	BatchSize  int
}

type staleReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (*payments.ReconcileSummary, error)
}

// NewPaymentReconcileJob builds the job that settles gateway orders left
// pending past the TTL: confirmed ones are paid, declined or abandoned ones
// are cancelled and release their coupon.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments reconciler required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		ttl:      ttl,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments staleReconciler
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	summary, err := j.payments.ReconcileStale(ctx, cutoff, j.batch)
	if summary != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"cutoff":    cutoff,
			"scanned":   summary.Scanned,
			"confirmed": summary.Confirmed,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
		})
		j.logg.Info(logCtx, "stale payment sweep complete")
	}
	if err != nil {
		return fmt.Errorf("payment reconcile: %w", err)
	}
	return nil
}

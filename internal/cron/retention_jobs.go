package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 90 * 24 * time.Hour
	defaultOutboxRetention       = 7 * 24 * time.Hour
	outboxMinAttempts            = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  time.Duration
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  time.Duration
	// MinAttempts marks unpublished rows as dead once they reach it; those
	// already have a DLQ copy and are pruned with the published ones.
	MinAttempts int
}

// retentionJob deletes rows older than a rolling cutoff in one transaction.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	fields    map[string]any
	now       func() time.Time
}

// NewNotificationCleanupJob prunes in-app notifications past retention.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob("notification-cleanup", params.Logger, params.DB,
		orDefault(params.Retention, defaultNotificationRetention), params.Repository.DeleteOlderThan, nil)
}

// NewOutboxRetentionJob prunes delivered outbox rows and dead rows.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	purge := func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
	}
	return newRetentionJob("outbox-retention", params.Logger, params.DB,
		orDefault(params.Retention, defaultOutboxRetention), purge, map[string]any{"min_attempts": minAttempts})
}

func newRetentionJob(name string, logg *logger.Logger, db txRunner, retention time.Duration,
	purge func(context.Context, *gorm.DB, time.Time) (int64, error), fields map[string]any) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("%s: logger required", name)
	}
	if db == nil {
		return nil, fmt.Errorf("%s: db runner required", name)
	}
	return &retentionJob{
		name:      name,
		logg:      logg,
		db:        db,
		retention: retention,
		purge:     purge,
		fields:    fields,
		now:       time.Now,
	}, nil
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.purge(ctx, tx, cutoff)
		return err
	}); err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	fields := map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention sweep complete")
	return nil
}

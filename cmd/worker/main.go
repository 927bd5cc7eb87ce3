package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/naijamart/storefront-backend/internal/app"
	"github.com/naijamart/storefront-backend/internal/notifications"
	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/kafka"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox/idempotency"
	"github.com/naijamart/storefront-backend/pkg/pubsub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.New(logger.Options{ServiceName: "worker"}).Error(ctx, "worker exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := app.Boot(ctx, "worker", app.WithRedis())
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

	guard, err := idempotency.NewManager(rt.Redis, rt.Config.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}
	dispatcher, err := notifications.NewDispatcher(services.Notifications, guard, rt.Logger)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	source, broker, closeBroker, err := newSource(ctx, rt.Config, rt.Logger)
	if err != nil {
		return err
	}
	defer closeBroker()

	consumer, err := notifications.NewConsumer(dispatcher, source, rt.Logger)
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	service, err := NewService(ServiceParams{
		Config:   rt.Config,
		Logger:   rt.Logger,
		DB:       rt.DB,
		Redis:    rt.Redis,
		Broker:   broker,
		Consumer: consumer,
	})
	if err != nil {
		return fmt.Errorf("worker service: %w", err)
	}

	fields := rt.Fields()
	fields["broker"] = rt.Config.Outbox.BrokerKind()
	ctx = rt.Logger.WithFields(ctx, fields)
	rt.Logger.Info(ctx, "starting notification worker")
	defer rt.Logger.Info(ctx, "notification worker stopped")
	return service.Run(ctx)
}

// idleSource stands in when no broker is configured: nothing is published,
// so the worker just waits for shutdown.
type idleSource struct{}

func (idleSource) Consume(ctx context.Context, _ func(context.Context, notifications.Message) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func (idleSource) Ping(context.Context) error { return nil }

func newSource(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Source, pinger, func(), error) {
	switch cfg.Outbox.BrokerKind() {
	case config.OutboxBrokerPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bootstrap pubsub: %w", err)
		}
		closer := func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}
		return notifications.PubSubSource{Client: client}, client, closer, nil
	case config.OutboxBrokerKafka:
		consumer, err := kafka.NewConsumer(cfg.Kafka, logg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
		return notifications.KafkaSource{Consumer: consumer}, consumer, consumer.Close, nil
	default:
		logg.Warn(ctx, "no broker configured, notification worker will idle")
		return idleSource{}, idleSource{}, func() {}, nil
	}
}

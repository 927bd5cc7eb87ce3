package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/naijamart/storefront-backend/internal/app"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/registry"
)

const serviceName = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.New(logger.Options{ServiceName: serviceName}).Error(ctx, "outbox publisher exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := app.Boot(ctx, serviceName, app.WithDevMigrations())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.Logger.Error(ctx, "closing resources", cerr)
		}
	}()

	broker, topic, closeBroker, err := newSink(ctx, rt.Config, rt.Logger)
	if err != nil {
		return err
	}
	defer closeBroker()

	events, err := registry.New(topic)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	conn := rt.DB.DB()
	service, err := NewService(ServiceParams{
		Config:        rt.Config,
		Logger:        rt.Logger,
		DB:            rt.DB,
		Sink:          broker,
		Repository:    outbox.NewRepository(conn),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(conn),
	})
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	fields := rt.Fields()
	fields["broker"] = broker.Name()
	ctx = rt.Logger.WithFields(ctx, fields)
	rt.Logger.Info(ctx, "starting outbox publisher")
	defer rt.Logger.Info(ctx, "outbox publisher stopped")
	return service.Run(ctx)
}

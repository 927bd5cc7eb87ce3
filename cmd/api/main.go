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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/naijamart/storefront-backend/api/controllers"
	"github.com/naijamart/storefront-backend/api/routes"
	"github.com/naijamart/storefront-backend/internal/app"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(ctx, "api exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := app.Boot(ctx, "api", app.WithRedis(), app.WithDevMigrations())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.Logger.Error(ctx, "closing resources", cerr)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := app.Build(app.Params{
		Config:     rt.Config,
		Logger:     rt.Logger,
		DB:         rt.DB,
		Redis:      rt.Redis,
		Registerer: registry,
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer services.Tickets.Shutdown()

	// PORT wins over config so the platform can assign one.
	port := os.Getenv("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: readHeaderTimeout,
		Handler: routes.NewRouter(routes.Deps{
			Config: rt.Config,
			Logger: rt.Logger,
			Store:  rt.Redis,
			Tx:     rt.DB,
			Pingers: map[string]controllers.Pinger{
				"database": rt.DB,
				"redis":    rt.Redis,
			},
			Metrics:       registry,
			Orders:        services.Orders,
			Payments:      services.Payments,
			Fulfillment:   services.Fulfillment,
			Wallet:        services.Wallet,
			Tickets:       services.Tickets,
			Notifications: services.Notifications,
			Coupons:       services.Coupons,
			Inventory:     services.Inventory,
		}),
	}

	fields := rt.Fields()
	fields["addr"] = server.Addr
	fields["bypass_gateway"] = rt.Config.Payments.BypassGateway
	logCtx := rt.Logger.WithFields(context.WithoutCancel(ctx), fields)
	rt.Logger.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(logCtx, shutdownTimeout)
	defer cancel()
	rt.Logger.Info(logCtx, "draining api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

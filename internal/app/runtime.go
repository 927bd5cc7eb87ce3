package app

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/db"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/migrate"
	"github.com/naijamart/storefront-backend/pkg/redis"
)

// Runtime is the process-level plumbing every binary boots with.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []func() error
}

// BootOption toggles optional resources during Boot.
type BootOption func(*bootOptions)

type bootOptions struct {
	redis      bool
	migrations bool
}

// WithRedis connects the shared redis client.
func WithRedis() BootOption { return func(o *bootOptions) { o.redis = true } }

// WithDevMigrations applies pending migrations on dev boots when enabled.
func WithDevMigrations() BootOption { return func(o *bootOptions) { o.migrations = true } }

// Boot loads .env and config, builds the service logger and opens the
// database. On error everything opened so far is closed again.
func Boot(ctx context.Context, service string, opts ...BootOption) (*Runtime, error) {
	var o bootOptions
	for _, opt := range opts {
		opt(&o)
	}

	envErr := godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	if envErr != nil {
		rt.Logger.Warn(ctx, ".env file not found, relying on environment")
	}

	if err := rt.open(ctx, o); err != nil {
		return nil, multierr.Append(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, o bootOptions) error {
	dbClient, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	rt.DB = dbClient
	rt.closers = append(rt.closers, dbClient.Close)

	if o.migrations {
		if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, dbClient); err != nil {
			return fmt.Errorf("dev migrations: %w", err)
		}
	}

	if o.redis {
		redisClient, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.Redis = redisClient
		rt.closers = append(rt.closers, redisClient.Close)
	}
	return nil
}

// OnClose registers fn to run during Close, before previously registered
// closers.
func (rt *Runtime) OnClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errs
}

// Fields are the log fields every long-running binary starts with.
func (rt *Runtime) Fields() map[string]any {
	return map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
	}
}

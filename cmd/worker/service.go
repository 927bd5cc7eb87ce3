package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	Broker   pinger
	Consumer consumer
}

type dependency struct {
	name string
	pinger
}

// Service runs the customer notification consumer once every dependency
// answers a ping.
type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer consumer
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil, params.Redis == nil:
		return nil, errors.New("database and redis clients are required")
	case params.Broker == nil:
		return nil, errors.New("broker client is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}
	return &Service{
		logg: params.Logger,
		deps: []dependency{
			{"database", params.DB},
			{"redis", params.Redis},
			{params.Config.Outbox.BrokerKind(), params.Broker},
		},
		consumer: params.Consumer,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" unreachable", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")

	err := s.consumer.Run(ctx)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return fmt.Errorf("consumer: %w", err)
	default:
		return errors.New("consumer returned without error")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kerr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/kafka"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox/registry"
	"github.com/naijamart/storefront-backend/pkg/pubsub"
)

type pubsubSink struct {
	client *pubsub.Client
}

func (s pubsubSink) Name() string { return config.OutboxBrokerPubSub }

func (s pubsubSink) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s pubsubSink) Publish(ctx context.Context, msg message) error {
	_, err := s.client.Publish(ctx, msg.Data, msg.Attributes)
	return classifyPubSub(err)
}

// classifyPubSub marks rejections that will repeat on every attempt.
func classifyPubSub(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.PermissionDenied, codes.NotFound:
		return registry.Permanent(err)
	}
	return err
}

type kafkaSink struct {
	producer *kafka.Producer
}

func (s kafkaSink) Name() string { return config.OutboxBrokerKafka }

func (s kafkaSink) Ping(ctx context.Context) error { return s.producer.Ping(ctx) }

func (s kafkaSink) Publish(ctx context.Context, msg message) error {
	return classifyKafka(s.producer.Publish(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Data,
		Headers: msg.Attributes,
	}))
}

// classifyKafka marks broker errors that franz-go reports as not retriable,
// such as an oversized record.
func classifyKafka(err error) error {
	var kafkaErr *kerr.Error
	if errors.As(err, &kafkaErr) && !kafkaErr.Retriable {
		return registry.Permanent(err)
	}
	return err
}

// logSink marks rows published after logging them. Used when no broker is
// configured so the outbox table still drains in local setups.
type logSink struct {
	logg *logger.Logger
}

func (s logSink) Name() string { return config.OutboxBrokerNone }

func (s logSink) Ping(context.Context) error { return nil }

func (s logSink) Publish(ctx context.Context, msg message) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_type":   msg.Attributes["event_type"],
		"aggregate_id": msg.Key,
		"bytes":        len(msg.Data),
	}), "outbox event logged without broker")
	return nil
}

// newSink builds the configured broker sink plus its closer.
func newSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (sink, string, func(), error) {
	switch cfg.Outbox.BrokerKind() {
	case config.OutboxBrokerPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, "", nil, fmt.Errorf("bootstrap pubsub: %w", err)
		}
		closer := func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}
		return pubsubSink{client: client}, cfg.PubSub.DomainTopic, closer, nil
	case config.OutboxBrokerKafka:
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, "", nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
		return kafkaSink{producer: producer}, cfg.Kafka.Topic, producer.Close, nil
	default:
		return logSink{logg: logg}, config.OutboxBrokerNone, func() {}, nil
	}
}

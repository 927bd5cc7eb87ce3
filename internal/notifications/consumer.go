package notifications

import (
	"context"
	"fmt"

	"github.com/naijamart/storefront-backend/pkg/kafka"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/pubsub"
)

// Source delivers published domain events until ctx ends. A handler error
// asks the transport to redeliver.
type Source interface {
	Consume(ctx context.Context, handle func(ctx context.Context, msg Message) error) error
}

// PubSubSource reads the domain subscription.
type PubSubSource struct {
	Client *pubsub.Client
}

func (s PubSubSource) Consume(ctx context.Context, handle func(context.Context, Message) error) error {
	return s.Client.Receive(ctx, func(ctx context.Context, data []byte, attributes map[string]string) error {
		return handle(ctx, Message{
			ID:        attributes["event_id"],
			EventType: attributes["event_type"],
			Data:      data,
		})
	})
}

// KafkaSource reads the domain topic as a consumer group member.
type KafkaSource struct {
	Consumer *kafka.Consumer
}

func (s KafkaSource) Consume(ctx context.Context, handle func(context.Context, Message) error) error {
	return s.Consumer.Run(ctx, func(ctx context.Context, msg kafka.Message) error {
		return handle(ctx, Message{
			ID:        msg.Headers["event_id"],
			EventType: msg.Headers["event_type"],
			Data:      msg.Value,
		})
	})
}

// Consumer feeds a message source into the dispatcher.
type Consumer struct {
	dispatcher *Dispatcher
	source     Source
	logg       *logger.Logger
}

func NewConsumer(dispatcher *Dispatcher, source Source, logg *logger.Logger) (*Consumer, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if source == nil {
		return nil, fmt.Errorf("message source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{dispatcher: dispatcher, source: source, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logg.Info(ctx, "notification consumer started")
	return c.source.Consume(ctx, c.dispatcher.Handle)
}

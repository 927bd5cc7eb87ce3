package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

// Message is one domain event on the wire. Headers carry event_type and ids.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Handler processes one record. Records are committed only after a nil return.
type Handler func(ctx context.Context, msg Message) error

var errBrokersRequired = errors.New("kafka brokers are required")

func baseOpts(cfg config.KafkaConfig) ([]kgo.Opt, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errBrokersRequired
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic is required")
	}
	opts := []kgo.Opt{kgo.SeedBrokers(brokers...)}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}
	return opts, nil
}

// Producer writes domain events to the configured topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	opts, err := baseOpts(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic}, nil
}

// Publish blocks until the broker acknowledges the record.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	record := toRecord(p.topic, msg)
	return p.client.ProduceSync(ctx, record).FirstErr()
}

func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Close()
}

// Consumer reads the domain topic as a member of the configured group.
type Consumer struct {
	client *kgo.Client
	logg   *logger.Logger
}

func NewConsumer(cfg config.KafkaConfig, logg *logger.Logger) (*Consumer, error) {
	opts, err := baseOpts(cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka consumer group is required")
	}
	opts = append(opts,
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(30*time.Second),
	)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating kafka consumer: %w", err)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Consumer{client: client, logg: logg}, nil
}

// Run polls until ctx ends. Failed records are logged and left uncommitted.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logCtx := c.logg.WithFields(ctx, map[string]any{"topic": topic, "partition": partition})
			c.logg.Error(logCtx, "kafka fetch error", err)
		})

		var done []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			if err := handle(ctx, fromRecord(record)); err != nil {
				logCtx := c.logg.WithFields(ctx, map[string]any{
					"partition":  record.Partition,
					"offset":     record.Offset,
					"event_type": header(record, "event_type"),
				})
				c.logg.Error(logCtx, "kafka record handling failed", err)
				return
			}
			done = append(done, record)
		})
		if len(done) > 0 {
			if err := c.client.CommitRecords(ctx, done...); err != nil {
				c.logg.Error(ctx, "kafka commit failed", err)
			}
		}
	}
}

func (c *Consumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *Consumer) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Close()
}

func toRecord(topic string, msg Message) *kgo.Record {
	record := &kgo.Record{
		Topic:     topic,
		Value:     msg.Value,
		Timestamp: time.Now(),
	}
	if msg.Key != "" {
		record.Key = []byte(msg.Key)
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record
}

func fromRecord(record *kgo.Record) Message {
	msg := Message{
		Key:     string(record.Key),
		Value:   record.Value,
		Headers: make(map[string]string, len(record.Headers)),
	}
	for _, h := range record.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

func header(record *kgo.Record, key string) string {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

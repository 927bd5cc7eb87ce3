package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

// Handler processes one delivered message. A nil return acks it; an error
// nacks it for redelivery.
type Handler func(ctx context.Context, data []byte, attributes map[string]string) error

// Client publishes to and receives from the single domain event topic.
type Client struct {
	client       *pubsub.Client
	topic        string
	subscription string
	publisher    *pubsub.Publisher
	logg         *logger.Logger
}

var errNotInitialized = errors.New("pubsub client not initialized")

// NewClient connects and fails fast when the domain topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	topic := resourceName(project, "topics", cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("pubsub domain topic is required")
	}

	psClient, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:       psClient,
		topic:        topic,
		subscription: resourceName(project, "subscriptions", cfg.DomainSubscription),
		logg:         logg,
	}
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Join(err, psClient.Close())
	}
	c.publisher = psClient.Publisher(topic)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// exists maps a NotFound from an admin lookup to a readable error.
func exists(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Publish sends one message to the domain topic and waits for the server id.
func (c *Client) Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error) {
	if c == nil || c.publisher == nil {
		return "", errNotInitialized
	}
	return c.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes}).Get(ctx)
}

// Receive blocks delivering domain subscription messages to fn until ctx ends.
func (c *Client) Receive(ctx context.Context, fn Handler) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if c.subscription == "" {
		return errors.New("pubsub domain subscription is not configured")
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
	if err := exists("subscription", c.subscription, err); err != nil {
		return err
	}

	return c.client.Subscriber(c.subscription).Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		err := fn(msgCtx, msg.Data, msg.Attributes)
		if err == nil {
			msg.Ack()
			return
		}
		if c.logg != nil {
			c.logg.Error(c.logg.WithFields(msgCtx, map[string]any{
				"message_id": msg.ID,
				"event_type": msg.Attributes["event_type"],
			}), "pubsub message handling failed", err)
		}
		msg.Nack()
	})
}

// Ping checks that the domain topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	return exists("topic", c.topic, err)
}

// Close flushes pending publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

// resourceName accepts a bare id or a full resource name of the given kind.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	if projectID = strings.TrimSpace(projectID); projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + n
}

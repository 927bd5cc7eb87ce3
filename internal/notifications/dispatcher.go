package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

const dispatcherConsumer = "customer-notifications"

// Message is a published outbox event as any transport delivers it.
type Message struct {
	ID        string
	EventType string
	Data      []byte
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Dispatcher turns outbox events into customer notifications.
type Dispatcher struct {
	notify func(ctx context.Context, req Request) error
	guard  processedGuard
	logg   *logger.Logger
}

// NewDispatcher builds a dispatcher. guard may be nil when the caller already
// guarantees at-most-once delivery.
func NewDispatcher(svc Service, guard processedGuard, logg *logger.Logger) (*Dispatcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		notify: func(ctx context.Context, req Request) error {
			_, err := svc.Notify(ctx, req)
			return err
		},
		guard: guard,
		logg:  logg,
	}, nil
}

// Handle processes one message. Undecodable messages are logged and dropped;
// a returned error means the message should be redelivered.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.EventType,
	})

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		d.logg.Error(logCtx, "dropping undecodable envelope", err)
		return nil
	}

	req, ok, err := buildRequest(enums.OutboxEventType(msg.EventType), envelope.Data)
	if err != nil {
		d.logg.Error(logCtx, "failed to parse payload", err)
		return nil
	}
	if !ok {
		d.logg.Debug(logCtx, "event does not notify")
		return nil
	}

	if d.guard != nil {
		already, err := d.guard.CheckAndMarkProcessed(ctx, dispatcherConsumer, envelope.EventID)
		if err != nil {
			d.logg.Error(logCtx, "idempotency check failed", err)
			return err
		}
		if already {
			d.logg.Info(logCtx, "event already processed")
			return nil
		}
	}

	if err := d.notify(ctx, req); err != nil {
		d.logg.Error(logCtx, "notification handling failed", err)
		if d.guard != nil {
			_ = d.guard.Delete(ctx, dispatcherConsumer, envelope.EventID)
		}
		return err
	}
	return nil
}

func buildRequest(eventType enums.OutboxEventType, data json.RawMessage) (Request, bool, error) {
	switch eventType {
	case enums.EventOrderPlaced:
		var p payloads.OrderPlacedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Request{}, false, err
		}
		return Request{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderPlaced,
			Title:   "Order received",
			Message: fmt.Sprintf("Order %s for %s has been placed. Payment is due on delivery.", p.OrderNumber, formatNaira(p.Total)),
			Link:    orderLink(p.OrderID),
		}, true, nil

	case enums.EventOrderPaid:
		var p payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Request{}, false, err
		}
		return Request{
			UserID:  p.UserID,
			Type:    enums.NotificationTypePaymentConfirmed,
			Title:   "Payment confirmed",
			Message: fmt.Sprintf("We received %s for order %s. We are preparing it now.", formatNaira(p.Total), p.OrderNumber),
			Link:    orderLink(p.OrderID),
		}, true, nil

	case enums.EventOrderPaymentFailed:
		var p payloads.OrderPaymentFailedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Request{}, false, err
		}
		return Request{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderStatus,
			Title:   "Payment not completed",
			Message: fmt.Sprintf("Order %s was cancelled because its payment was not completed.", p.OrderNumber),
			Link:    orderLink(p.OrderID),
		}, true, nil

	case enums.EventOrderStatusChanged:
		var p payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Request{}, false, err
		}
		message := fmt.Sprintf("Order %s is now %s.", p.OrderNumber, p.To)
		if p.TrackingNumber != nil && p.To == enums.DeliveryStatusShipped {
			message = fmt.Sprintf("Order %s has shipped. Tracking number: %s.", p.OrderNumber, *p.TrackingNumber)
		}
		return Request{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderStatus,
			Title:   "Order update",
			Message: message,
			Link:    orderLink(p.OrderID),
		}, true, nil

	case enums.EventLoyaltyUpdated:
		var p payloads.LoyaltyUpdatedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Request{}, false, err
		}
		if !p.Changed {
			return Request{}, false, nil
		}
		return Request{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeLoyalty,
			Title:   "New loyalty tier",
			Message: fmt.Sprintf("You are now a %s member.", p.Tier),
		}, true, nil

	case enums.EventTicketStatusChanged:
		var p payloads.TicketStatusChangedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Request{}, false, err
		}
		link := fmt.Sprintf("/support/tickets/%s", p.TicketID)
		return Request{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeTicket,
			Title:   "Support ticket update",
			Message: fmt.Sprintf("Your ticket %q is now %s.", p.Subject, strings.ReplaceAll(string(p.To), "_", " ")),
			Link:    &link,
		}, true, nil
	}
	return Request{}, false, nil
}

func orderLink(id uuid.UUID) *string {
	link := fmt.Sprintf("/orders/%s", id)
	return &link
}

// formatNaira renders whole Naira with thousands separators.
func formatNaira(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "₦" + b.String()
}

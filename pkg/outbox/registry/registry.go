// Package registry maps outbox event types to their aggregate, topic and
// typed payload so the publisher can reject malformed rows before sending.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

// Descriptor describes one publishable event type.
type Descriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// Resolved is an outbox row that passed validation.
type Resolved struct {
	Descriptor Descriptor
	Envelope   outbox.Envelope
	Payload    any
}

type Registry struct {
	entries map[enums.OutboxEventType]Descriptor
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) Descriptor {
	return Descriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// New builds the registry. Every storefront event goes to the same topic.
func New(topic string) (*Registry, error) {
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	reg := &Registry{entries: map[enums.OutboxEventType]Descriptor{}}
	for _, d := range []Descriptor{
		describe[payloads.OrderPlacedEvent](enums.EventOrderPlaced, enums.AggregateOrder),
		describe[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder),
		describe[payloads.OrderPaymentFailedEvent](enums.EventOrderPaymentFailed, enums.AggregateOrder),
		describe[payloads.StockCommittedEvent](enums.EventStockCommitted, enums.AggregateOrder),
		describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
		describe[payloads.LoyaltyUpdatedEvent](enums.EventLoyaltyUpdated, enums.AggregateUser),
		describe[payloads.TicketStatusChangedEvent](enums.EventTicketStatusChanged, enums.AggregateTicket),
	} {
		d.Topic = topic
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Resolve validates row and decodes its payload. Every error it returns is
// permanent: retrying the same row cannot succeed.
func (r *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	desc, ok := r.entries[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if desc.AggregateType != row.AggregateType {
		return nil, Permanent(fmt.Errorf("event %s belongs to %s, row says %s", row.EventType, desc.AggregateType, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate id"))
	}
	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &Resolved{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The publisher dead-letters such
// rows immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

type mapGuard struct {
	seen    map[string]bool
	deleted int
}

func (g *mapGuard) CheckAndMarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	key := consumer + "/" + eventID
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *mapGuard) Delete(_ context.Context, consumer, eventID string) error {
	g.deleted++
	delete(g.seen, consumer+"/"+eventID)
	return nil
}

func envelopeFor(t *testing.T, eventID string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.Envelope{Version: 1, EventID: eventID, Data: raw})
	require.NoError(t, err)
	return body
}

func newTestDispatcher(t *testing.T, repo *fakeRepository) (*Dispatcher, *mapGuard) {
	t.Helper()
	guard := &mapGuard{seen: map[string]bool{}}
	d, err := NewDispatcher(newServiceWithRepo(repo), guard, logger.Nop())
	require.NoError(t, err)
	return d, guard
}

func TestDispatcherNotifiesOncePerEvent(t *testing.T) {
	repo := &fakeRepository{}
	d, _ := newTestDispatcher(t, repo)
	userID := uuid.New()
	body := envelopeFor(t, "01J0000000000000000000000A", payloads.OrderPaidEvent{
		OrderID: uuid.New(), OrderNumber: "ORD-20260601-ABC123", UserID: userID, Total: 1250000,
	})
	msg := Message{ID: "m1", EventType: string(enums.EventOrderPaid), Data: body}

	require.NoError(t, d.Handle(context.Background(), msg))
	require.NoError(t, d.Handle(context.Background(), msg))

	require.Len(t, repo.created, 1)
	n := repo.created[0]
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, enums.NotificationTypePaymentConfirmed, n.Type)
	assert.Contains(t, n.Message, "₦1,250,000")
	assert.Contains(t, n.Message, "ORD-20260601-ABC123")
}

func TestDispatcherShippedMessageCarriesTracking(t *testing.T) {
	repo := &fakeRepository{}
	d, _ := newTestDispatcher(t, repo)
	tracking := "GIG-55"
	body := envelopeFor(t, "evt-ship", payloads.OrderStatusChangedEvent{
		OrderID: uuid.New(), OrderNumber: "ORD-1", UserID: uuid.New(),
		From: enums.DeliveryStatusProcessing, To: enums.DeliveryStatusShipped, TrackingNumber: &tracking,
	})

	require.NoError(t, d.Handle(context.Background(), Message{EventType: string(enums.EventOrderStatusChanged), Data: body}))
	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.created[0].Message, "GIG-55")
}

func TestDispatcherSkipsUnchangedLoyaltyAndUnknownEvents(t *testing.T) {
	repo := &fakeRepository{}
	d, _ := newTestDispatcher(t, repo)

	loyalty := envelopeFor(t, "evt-l", payloads.LoyaltyUpdatedEvent{UserID: uuid.New(), Tier: enums.LoyaltyTierBronze})
	require.NoError(t, d.Handle(context.Background(), Message{EventType: string(enums.EventLoyaltyUpdated), Data: loyalty}))

	stock := envelopeFor(t, "evt-s", payloads.StockCommittedEvent{OrderID: uuid.New()})
	require.NoError(t, d.Handle(context.Background(), Message{EventType: string(enums.EventStockCommitted), Data: stock}))

	require.NoError(t, d.Handle(context.Background(), Message{EventType: string(enums.EventOrderPaid), Data: []byte("{")}))
	assert.Empty(t, repo.created)
}

func TestDispatcherFailureClearsMarker(t *testing.T) {
	repo := &fakeRepository{createErr: errors.New("db down")}
	d, guard := newTestDispatcher(t, repo)
	body := envelopeFor(t, "evt-fail", payloads.OrderPlacedEvent{OrderID: uuid.New(), OrderNumber: "ORD-2", UserID: uuid.New(), Total: 4000})

	err := d.Handle(context.Background(), Message{EventType: string(enums.EventOrderPlaced), Data: body})
	require.Error(t, err)
	assert.Equal(t, 1, guard.deleted)
	assert.Empty(t, guard.seen)
}

func TestFormatNaira(t *testing.T) {
	assert.Equal(t, "₦0", formatNaira(0))
	assert.Equal(t, "₦999", formatNaira(999))
	assert.Equal(t, "₦1,000", formatNaira(1000))
	assert.Equal(t, "₦12,345,678", formatNaira(12345678))
}

type sliceSource struct {
	msgs   []Message
	failed int
}

func (s *sliceSource) Consume(ctx context.Context, handle func(context.Context, Message) error) error {
	for _, msg := range s.msgs {
		if err := handle(ctx, msg); err != nil {
			s.failed++
		}
	}
	return nil
}

func TestConsumerFeedsSourceIntoDispatcher(t *testing.T) {
	repo := &fakeRepository{}
	d, _ := newTestDispatcher(t, repo)
	body := envelopeFor(t, "evt-placed", payloads.OrderPlacedEvent{
		OrderID: uuid.New(), OrderNumber: "ORD-20260601-XYZ789", UserID: uuid.New(), Total: 5000,
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	source := &sliceSource{msgs: []Message{
		{ID: "evt-placed", EventType: string(enums.EventOrderPlaced), Data: body},
		{ID: "junk", EventType: string(enums.EventOrderPlaced), Data: []byte("not json")},
	}}
	consumer, err := NewConsumer(d, source, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, consumer.Run(context.Background()))
	assert.Len(t, repo.created, 1)
	assert.Zero(t, source.failed)
}

func TestNewConsumerRequiresSource(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeRepository{})
	_, err := NewConsumer(d, nil, logger.Nop())
	require.Error(t, err)
}

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// OrderPlacedEvent is emitted when a cash-on-delivery order is accepted.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Total         int64               `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// OrderPaidEvent is emitted once per order when its payment is confirmed.
type OrderPaidEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Total         int64               `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Reference     string              `json:"reference"`
	PaidAt        time.Time           `json:"paid_at"`
}

// OrderPaymentFailedEvent is emitted when a pending payment is definitively declined.
type OrderPaymentFailedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	Reference   string    `json:"reference"`
	Reason      string    `json:"reason"`
}

// StockLine reports how one order line was applied to stock.
type StockLine struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
	Found     bool       `json:"found"`
	Shortfall int        `json:"shortfall"`
}

// StockCommittedEvent lists the per-line stock decrements of a paid order.
type StockCommittedEvent struct {
	OrderID uuid.UUID   `json:"order_id"`
	Lines   []StockLine `json:"lines"`
}

// Oversold reports whether any line was short at commit time.
func (e StockCommittedEvent) Oversold() bool {
	for _, line := range e.Lines {
		if line.Shortfall > 0 {
			return true
		}
	}
	return false
}

// LoyaltyUpdatedEvent carries a customer's spend after a paid order.
type LoyaltyUpdatedEvent struct {
	UserID       uuid.UUID         `json:"user_id"`
	OrderID      uuid.UUID         `json:"order_id"`
	TotalSpent   int64             `json:"total_spent"`
	Tier         enums.LoyaltyTier `json:"tier"`
	PreviousTier enums.LoyaltyTier `json:"previous_tier"`
	Changed      bool              `json:"changed"`
}

// OrderStatusChangedEvent is emitted for every fulfillment transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	UserID         uuid.UUID            `json:"user_id"`
	From           enums.DeliveryStatus `json:"from"`
	To             enums.DeliveryStatus `json:"to"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
}

// TicketStatusChangedEvent is emitted when a support ticket moves state.
type TicketStatusChangedEvent struct {
	TicketID uuid.UUID          `json:"ticket_id"`
	UserID   uuid.UUID          `json:"user_id"`
	Subject  string             `json:"subject"`
	From     enums.TicketStatus `json:"from"`
	To       enums.TicketStatus `json:"to"`
}

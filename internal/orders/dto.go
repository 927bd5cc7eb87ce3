package orders

import (
	"time"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
)

// AdminFilters narrows the admin order listing.
type AdminFilters struct {
	PaymentStatus  *enums.PaymentStatus
	DeliveryStatus *enums.DeliveryStatus
	PaymentMethod  *enums.PaymentMethod
	Search         string
}

// TrackingView is the public projection of an order; it carries no customer
// details.
type TrackingView struct {
	OrderNumber    string                 `json:"orderNumber"`
	DeliveryStatus enums.DeliveryStatus   `json:"deliveryStatus"`
	TrackingNumber *string                `json:"trackingNumber,omitempty"`
	PlacedAt       time.Time              `json:"placedAt"`
	ShippedAt      *time.Time             `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time             `json:"deliveredAt,omitempty"`
	Events         []models.TrackingEvent `json:"events"`
}

func newTrackingView(order *models.Order) *TrackingView {
	events := order.TrackingEvents
	if events == nil {
		events = []models.TrackingEvent{}
	}
	return &TrackingView{
		OrderNumber:    order.OrderNumber,
		DeliveryStatus: order.DeliveryStatus,
		TrackingNumber: order.TrackingNumber,
		PlacedAt:       order.CreatedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		Events:         events,
	}
}

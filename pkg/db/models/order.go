package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// ShippingAddress is stored as a json document on the order.
type ShippingAddress struct {
	FullName   string  `json:"fullName"`
	Phone      string  `json:"phone"`
	Street     string  `json:"street"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode *string `json:"postalCode,omitempty"`
	Country    string  `json:"country"`
}

// Order is the aggregate root for a placed order. Money fields are whole Naira
// and are computed once at creation.
type Order struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber     string          `gorm:"column:order_number;not null;uniqueIndex:uq_orders_order_number" json:"orderNumber"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	TrackingEvents  []TrackingEvent `gorm:"foreignKey:OrderID" json:"trackingEvents"`
	ShippingAddress ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null" json:"shippingAddress"`

	Subtotal       int64      `gorm:"column:subtotal;not null" json:"subtotal"`
	DeliveryFee    int64      `gorm:"column:delivery_fee;not null" json:"deliveryFee"`
	MethodDiscount int64      `gorm:"column:method_discount;not null" json:"methodDiscount"`
	CouponDiscount int64      `gorm:"column:coupon_discount;not null" json:"couponDiscount"`
	Discount       int64      `gorm:"column:discount;not null" json:"discount"`
	Total          int64      `gorm:"column:total;not null" json:"total"`
	CouponID       *uuid.UUID `gorm:"column:coupon_id;type:uuid" json:"-"`
	CouponCode     *string    `gorm:"column:coupon_code;index" json:"couponCode,omitempty"`
	CouponRedeemed bool       `gorm:"column:coupon_redeemed;not null" json:"-"`

	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"paymentMethod"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;index" json:"paymentStatus"`
	PaymentReference *string             `gorm:"column:payment_reference;index" json:"paymentReference,omitempty"`
	AuthorizationURL *string             `gorm:"column:authorization_url" json:"authorizationUrl,omitempty"`
	AccessCode       *string             `gorm:"column:access_code" json:"accessCode,omitempty"`
	PaidAt           *time.Time          `gorm:"column:paid_at" json:"paidAt,omitempty"`
	StockCommitted   bool                `gorm:"column:stock_committed;not null" json:"-"`

	DeliveryStatus enums.DeliveryStatus `gorm:"column:delivery_status;type:text;not null;index" json:"deliveryStatus"`
	TrackingNumber *string              `gorm:"column:tracking_number" json:"trackingNumber,omitempty"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at" json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time           `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`

	CustomerNote *string   `gorm:"column:customer_note" json:"customerNote,omitempty"`
	AdminNote    *string   `gorm:"column:admin_note" json:"adminNote,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is an immutable snapshot of a cart line at order time.
type OrderItem struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID          uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index" json:"-"`
	ProductID        uuid.UUID         `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	VariantID        *uuid.UUID        `gorm:"column:variant_id;type:uuid" json:"variantId,omitempty"`
	Name             string            `gorm:"column:name;not null" json:"name"`
	SKU              string            `gorm:"column:sku;not null" json:"sku"`
	UnitPrice        int64             `gorm:"column:unit_price;not null" json:"unitPrice"`
	Quantity         int               `gorm:"column:quantity;not null" json:"quantity"`
	Image            *string           `gorm:"column:image" json:"image,omitempty"`
	ChosenAttributes map[string]string `gorm:"column:chosen_attributes;type:jsonb;serializer:json" json:"chosenAttributes,omitempty"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// TrackingEvent is an append-only audit entry. The serial id preserves
// insertion order.
type TrackingEvent struct {
	ID        int64                `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index" json:"-"`
	Status    enums.DeliveryStatus `gorm:"column:status;type:text;not null" json:"status"`
	Location  string               `gorm:"column:location;not null" json:"location"`
	Message   string               `gorm:"column:message;not null" json:"message"`
	CreatedAt time.Time            `gorm:"column:created_at;not null" json:"timestamp"`
}

func (TrackingEvent) TableName() string { return "order_tracking_events" }

package coupons

import (
	"github.com/naijamart/storefront-backend/internal/pricing"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
)

// RejectionReason explains why a coupon could not be applied.
type RejectionReason string

const (
	ReasonNotFound          RejectionReason = "not_found"
	ReasonInactive          RejectionReason = "inactive"
	ReasonExpired           RejectionReason = "expired"
	ReasonUsageLimitReached RejectionReason = "usage_limit_reached"
	ReasonUserLimitReached  RejectionReason = "user_limit_reached"
	ReasonMinOrderNotMet    RejectionReason = "min_order_not_met"
)

var rejectionMessages = map[RejectionReason]string{
	ReasonNotFound:          "coupon code does not exist",
	ReasonInactive:          "coupon is no longer active",
	ReasonExpired:           "coupon has expired",
	ReasonUsageLimitReached: "coupon usage limit has been reached",
	ReasonUserLimitReached:  "you have already used this coupon the maximum number of times",
	ReasonMinOrderNotMet:    "order total is below the coupon minimum",
}

// Rejection is a soft failure: checkout proceeds without the coupon.
type Rejection struct {
	Reason  RejectionReason `json:"reason"`
	Message string          `json:"message"`
}

func reject(reason RejectionReason) *Rejection {
	return &Rejection{Reason: reason, Message: rejectionMessages[reason]}
}

// Validated is a coupon that passed every check for a given subtotal and user.
type Validated struct {
	Coupon models.Coupon
}

// PricingCoupon converts the stored coupon into the pricing engine's input.
func (v Validated) PricingCoupon() pricing.Coupon {
	return pricing.Coupon{
		Type:              v.Coupon.Type,
		Value:             v.Coupon.Value,
		MaxDiscountAmount: v.Coupon.MaxDiscountAmount,
	}
}

// Preview is returned by the standalone validation endpoint.
type Preview struct {
	Code     string           `json:"code"`
	Type     enums.CouponType `json:"type"`
	Value    int64            `json:"value"`
	Discount int64            `json:"discount"`
}

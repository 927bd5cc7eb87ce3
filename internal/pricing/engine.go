// Package pricing computes order totals. Everything here is pure: no clock,
// no storage, no network.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
)

// BankTransferDiscount is the flat incentive for paying by bank transfer.
const BankTransferDiscount int64 = 200

var hundred = decimal.NewFromInt(100)

// WalletDiscount is a per-product percentage that only applies to wallet payments.
type WalletDiscount struct {
	Percent   decimal.Decimal
	Active    bool
	ExpiresAt *time.Time
}

func (w *WalletDiscount) appliesAt(now time.Time) bool {
	if w == nil || !w.Active || !w.Percent.IsPositive() {
		return false
	}
	return w.ExpiresAt == nil || w.ExpiresAt.After(now)
}

type Line struct {
	ProductID      uuid.UUID
	UnitPrice      int64
	Quantity       int
	WalletDiscount *WalletDiscount
}

func (l Line) total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Coupon is the already-validated coupon to price with.
type Coupon struct {
	Type              enums.CouponType
	Value             int64
	MaxDiscountAmount *int64
}

type Input struct {
	Lines         []Line
	ShippingState string
	PaymentMethod enums.PaymentMethod
	Coupon        *Coupon
	Now           time.Time
}

// Result is the priced breakdown. CouponDiscount is the coupon's actual
// contribution after the discount cap; RequestedCouponDiscount is what the
// coupon asked for.
type Result struct {
	Subtotal                int64 `json:"subtotal"`
	DeliveryFee             int64 `json:"deliveryFee"`
	MethodDiscount          int64 `json:"methodDiscount"`
	CouponDiscount          int64 `json:"couponDiscount"`
	RequestedCouponDiscount int64 `json:"-"`
	Discount                int64 `json:"discount"`
	Total                   int64 `json:"total"`
}

// CouponCapped reports whether the discount cap cut into the coupon.
func (r Result) CouponCapped() bool {
	return r.CouponDiscount < r.RequestedCouponDiscount
}

// Price computes the full breakdown for a cart.
func Price(in Input) (Result, error) {
	if len(in.Lines) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !in.PaymentMethod.IsValid() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"paymentMethod": in.PaymentMethod})
	}

	var subtotal int64
	for i, line := range in.Lines {
		if line.Quantity <= 0 {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"line": i})
		}
		if line.UnitPrice < 0 {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative").
				WithDetails(map[string]any{"line": i})
		}
		subtotal += line.total()
	}

	res := Result{
		Subtotal:    subtotal,
		DeliveryFee: DeliveryFee(in.ShippingState, subtotal),
	}
	res.MethodDiscount = methodDiscount(in)
	if in.Coupon != nil {
		res.RequestedCouponDiscount = CouponDiscount(*in.Coupon, subtotal)
	}
	res.MethodDiscount, res.CouponDiscount = applyCap(subtotal, res.MethodDiscount, res.RequestedCouponDiscount)
	res.Discount = res.MethodDiscount + res.CouponDiscount
	res.Total = res.Subtotal + res.DeliveryFee - res.Discount
	return res, nil
}

func methodDiscount(in Input) int64 {
	switch in.PaymentMethod {
	case enums.PaymentMethodWallet:
		var total int64
		for _, line := range in.Lines {
			if !line.WalletDiscount.appliesAt(in.Now) {
				continue
			}
			total += percentOf(line.total(), line.WalletDiscount.Percent)
		}
		return total
	case enums.PaymentMethodBankTransfer:
		return BankTransferDiscount
	case enums.PaymentMethodCard, enums.PaymentMethodCashOnDelivery:
		return 0
	}
	return 0
}

// CouponDiscount is the uncapped discount a coupon grants on subtotal.
func CouponDiscount(c Coupon, subtotal int64) int64 {
	var amount int64
	switch c.Type {
	case enums.CouponTypePercentage:
		amount = percentOf(subtotal, decimal.NewFromInt(c.Value))
		if c.MaxDiscountAmount != nil && *c.MaxDiscountAmount > 0 && amount > *c.MaxDiscountAmount {
			amount = *c.MaxDiscountAmount
		}
	case enums.CouponTypeFixed:
		amount = c.Value
	}
	if amount < 0 {
		return 0
	}
	if amount > subtotal {
		return subtotal
	}
	return amount
}

// MaxDiscount is the fraud cap: half the subtotal, rounded down.
func MaxDiscount(subtotal int64) int64 {
	return subtotal / 2
}

// applyCap trims the coupon first, then the method discount if it alone
// breaches the cap.
func applyCap(subtotal, method, coupon int64) (int64, int64) {
	limit := MaxDiscount(subtotal)
	if method+coupon <= limit {
		return method, coupon
	}
	if method >= limit {
		return limit, 0
	}
	return method, limit - method
}

func percentOf(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Floor().IntPart()
}

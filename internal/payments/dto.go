package payments

import (
	"strings"

	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
)

// CreateInput is the checkout request after transport validation.
type CreateInput struct {
	ShippingAddress models.ShippingAddress
	PaymentMethod   enums.PaymentMethod
	CouponCode      string
	CustomerNote    *string
}

// CreateResult is returned to the client after an order is placed. PaymentURL
// and AccessCode are only set for gateway methods.
type CreateResult struct {
	Order      *models.Order `json:"order"`
	PaymentURL *string       `json:"paymentUrl,omitempty"`
	AccessCode *string       `json:"accessCode,omitempty"`
	Reference  string        `json:"reference"`
	// CouponRejected carries the soft-fail reason when the requested coupon
	// was dropped.
	CouponRejected *string `json:"couponRejected,omitempty"`
}

// Outcome classifies a verification attempt.
type Outcome string

const (
	OutcomeConfirmed   Outcome = "confirmed"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeDeclined    Outcome = "declined"
	OutcomeTransient   Outcome = "transient"
	OutcomeNotFound    Outcome = "not_found"
)

// Success reports whether the order ends up paid.
func (o Outcome) Success() bool {
	return o == OutcomeConfirmed || o == OutcomeAlreadyPaid
}

// VerifyResult is the body of the verify endpoint. It is always a 200;
// Success and Outcome tell the client what happened.
type VerifyResult struct {
	Success     bool          `json:"success"`
	Outcome     Outcome       `json:"outcome"`
	Message     string        `json:"message"`
	AlreadyPaid bool          `json:"alreadyPaid,omitempty"`
	Order       *models.Order `json:"order,omitempty"`
}

func newVerifyResult(outcome Outcome, message string, order *models.Order) *VerifyResult {
	return &VerifyResult{
		Success:     outcome.Success(),
		Outcome:     outcome,
		Message:     message,
		AlreadyPaid: outcome == OutcomeAlreadyPaid,
		Order:       order,
	}
}

const (
	devReferencePrefix = "DEV-"

	messageConfirmed   = "payment confirmed"
	messageAlreadyPaid = "order already paid"
	messageNotFound    = "order not found"
	messageTransient   = "could not reach the payment gateway; try again shortly"
	messageNotOnline   = "order is not awaiting online payment"
	messageMismatch    = "paid amount does not match the order total"
)

func isInternalReference(ref string) bool {
	return strings.HasPrefix(ref, devReferencePrefix) || orders.IsOrderNumber(ref)
}

// ReconcileSummary reports what a stale-payment sweep did.
type ReconcileSummary struct {
	Scanned   int `json:"scanned"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

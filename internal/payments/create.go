package payments

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/coupons"
	"github.com/naijamart/storefront-backend/internal/inventory"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/internal/pricing"
	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/gateway"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

// Create turns the caller's cart into an order. Wallet orders are debited and
// confirmed in the same transaction that inserts them; gateway orders get a
// payment session after the insert commits; cash-on-delivery orders are
// placed as pending.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*CreateResult, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if strings.TrimSpace(input.ShippingAddress.State) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping state is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	items, err := s.cart.Items(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}
	resolved, err := s.inventory.CheckAvailability(ctx, lines)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	base := pricing.Input{
		Lines:         pricingLines(resolved),
		ShippingState: input.ShippingAddress.State,
		PaymentMethod: input.PaymentMethod,
		Now:           now,
	}
	unpriced, err := pricing.Price(base)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{}
	var coupon *coupons.Validated
	if code := coupons.NormalizeCode(input.CouponCode); code != "" {
		valid, rejection, err := s.coupons.Validate(ctx, code, unpriced.Subtotal, userID)
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"coupon_code": code, "reason": rejection.Reason})
			s.logg.Warn(logCtx, "coupon rejected at checkout, continuing without it")
			reason := string(rejection.Reason)
			result.CouponRejected = &reason
		}
		coupon = valid
	}

	priced := unpriced
	if coupon != nil {
		withCoupon := base
		pc := coupon.PricingCoupon()
		withCoupon.Coupon = &pc
		if priced, err = pricing.Price(withCoupon); err != nil {
			return nil, err
		}
		if priced.CouponDiscount == 0 {
			coupon = nil
			priced = unpriced
		}
	}

	if input.PaymentMethod == enums.PaymentMethodWallet && user.WalletBalance < priced.Total {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, wallet.ErrInsufficientBalance.Message()).WithDetails(map[string]any{
			"balance": user.WalletBalance,
			"total":   priced.Total,
		})
	}

	order := buildOrder(userID, input, resolved, priced, now)
	var paid bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if coupon != nil {
			claimed, err := s.coupons.Claim(ctx, tx, coupon.Coupon.ID)
			if err != nil {
				return err
			}
			if claimed {
				code := coupon.Coupon.Code
				order.CouponID = &coupon.Coupon.ID
				order.CouponCode = &code
				order.CouponRedeemed = true
			} else {
				applyTotals(order, unpriced)
				reason := string(coupons.ReasonUsageLimitReached)
				result.CouponRejected = &reason
			}
		}

		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order, s.ids, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		switch order.PaymentMethod {
		case enums.PaymentMethodWallet:
			reference := "WDR-" + order.OrderNumber
			if _, err := s.wallet.Debit(ctx, tx, wallet.DebitInput{
				UserID:      userID,
				Amount:      order.Total,
				Reference:   reference,
				OrderID:     &order.ID,
				Description: "Payment for order " + order.OrderNumber,
			}); err != nil {
				return err
			}
			if err := repo.UpdateFields(ctx, order.ID, map[string]any{"payment_reference": reference}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment reference")
			}
			order.PaymentReference = &reference
			won, err := s.settle(ctx, tx, order, reference, now)
			if err != nil {
				return err
			}
			paid = won
		case enums.PaymentMethodCashOnDelivery:
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPlaced,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data: payloads.OrderPlacedEvent{
					OrderID:       order.ID,
					OrderNumber:   order.OrderNumber,
					UserID:        userID,
					Total:         order.Total,
					PaymentMethod: order.PaymentMethod,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrder(ctx, order.OrderNumber)
	s.metrics.IncOrderCreated(string(order.PaymentMethod))

	result.Reference = order.OrderNumber
	if order.PaymentMethod.UsesGateway() {
		session, err := s.openSession(ctx, user, order)
		if err != nil {
			s.rollbackOrder(ctx, order)
			return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInit, err, "payment initialization failed")
		}
		fields := map[string]any{
			"payment_reference": session.Reference,
			"authorization_url": session.AuthorizationURL,
		}
		if session.AccessCode != "" {
			fields["access_code"] = session.AccessCode
			result.AccessCode = &session.AccessCode
		}
		if err := s.orders.UpdateFields(ctx, order.ID, fields); err != nil {
			// The gateway reference equals the order number, so verify still
			// finds the order even without the stored session.
			s.logg.Error(ctx, "failed to store payment session", err)
		}
		order.PaymentReference = &session.Reference
		order.AuthorizationURL = &session.AuthorizationURL
		order.AccessCode = result.AccessCode
		result.PaymentURL = &session.AuthorizationURL
		result.Reference = session.Reference
	} else if order.PaymentReference != nil {
		result.Reference = *order.PaymentReference
	}

	if _, err := s.cart.Clear(ctx, userID); err != nil {
		s.logg.Error(ctx, "failed to clear cart after checkout", err)
	}

	if paid {
		if reloaded, err := s.orders.FindByID(ctx, order.ID); err == nil && reloaded != nil {
			order = reloaded
		}
	}
	result.Order = order
	s.logg.Info(s.logg.WithField(ctx, "payment_method", order.PaymentMethod), "order placed")
	return result, nil
}

// openSession starts a gateway payment. Initialize is not idempotent on the
// gateway side, so it is attempted exactly once.
func (s *service) openSession(ctx context.Context, user *models.User, order *models.Order) (*gateway.Session, error) {
	if s.bypass {
		reference := devReferencePrefix + order.OrderNumber
		return &gateway.Session{
			AuthorizationURL: withReference(s.callbackURL, reference),
			Reference:        reference,
		}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()
	start := time.Now()
	session, err := s.gateway.Initialize(initCtx, gateway.InitializeRequest{
		Email:       user.Email,
		AmountNaira: order.Total,
		Reference:   order.OrderNumber,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"orderNumber": order.OrderNumber,
			"orderId":     order.ID.String(),
		},
	})
	s.metrics.ObserveGateway("initialize", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if session.Reference == "" {
		session.Reference = order.OrderNumber
	}
	return session, nil
}

// rollbackOrder removes an order whose payment session could not be opened
// and gives back its coupon claim.
func (s *service) rollbackOrder(ctx context.Context, order *models.Order) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if order.CouponID != nil && order.CouponRedeemed {
			if err := s.coupons.Release(ctx, tx, *order.CouponID); err != nil {
				return err
			}
		}
		return s.orders.WithTx(tx).Delete(ctx, order.ID)
	})
	if err != nil {
		s.logg.Error(ctx, "failed to roll back order after payment initialization failure", err)
		return
	}
	s.logg.Warn(ctx, "order rolled back after payment initialization failure")
}

func withReference(callbackURL, reference string) string {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return callbackURL + "?reference=" + url.QueryEscape(reference)
	}
	q := parsed.Query()
	q.Set("reference", reference)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func pricingLines(resolved []inventory.Resolved) []pricing.Line {
	lines := make([]pricing.Line, 0, len(resolved))
	for _, r := range resolved {
		lines = append(lines, pricing.Line{
			ProductID:      r.ProductID,
			UnitPrice:      r.UnitPrice,
			Quantity:       r.Quantity,
			WalletDiscount: r.WalletDiscount,
		})
	}
	return lines
}

func buildOrder(userID uuid.UUID, input CreateInput, resolved []inventory.Resolved, priced pricing.Result, now time.Time) *models.Order {
	order := &models.Order{
		UserID:          userID,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		CustomerNote:    input.CustomerNote,
	}
	applyTotals(order, priced)

	placed, _ := orders.Apply(orders.State{}, orders.Placed())
	order.PaymentStatus = placed.Next.Payment
	order.DeliveryStatus = placed.Next.Delivery
	for _, entry := range placed.Entries {
		order.TrackingEvents = append(order.TrackingEvents, models.TrackingEvent{
			Status:    entry.Status,
			Location:  entry.Location,
			Message:   entry.Message,
			CreatedAt: now,
		})
	}

	order.Items = make([]models.OrderItem, 0, len(resolved))
	for _, r := range resolved {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:        r.ProductID,
			VariantID:        r.VariantID,
			Name:             r.Name,
			SKU:              r.SKU,
			UnitPrice:        r.UnitPrice,
			Quantity:         r.Quantity,
			Image:            r.Image,
			ChosenAttributes: r.Attributes,
		})
	}
	return order
}

func applyTotals(order *models.Order, priced pricing.Result) {
	order.Subtotal = priced.Subtotal
	order.DeliveryFee = priced.DeliveryFee
	order.MethodDiscount = priced.MethodDiscount
	order.CouponDiscount = priced.CouponDiscount
	order.Discount = priced.Discount
	order.Total = priced.Total
}

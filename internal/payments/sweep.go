package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

var gatewayMethods = []enums.PaymentMethod{enums.PaymentMethodCard, enums.PaymentMethodBankTransfer}

// ReconcileStale re-checks gateway orders that stayed pending since before
// olderThan. Paid ones are confirmed, definitively failed ones are cancelled
// and their coupon claim released, and the rest are left for the next run.
func (s *service) ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (*ReconcileSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.orders.ListStalePending(ctx, gatewayMethods, olderThan, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale orders")
	}

	summary := &ReconcileSummary{Scanned: len(rows)}
	var errs error
	for _, row := range rows {
		order, err := s.orders.FindByID(ctx, row.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", row.OrderNumber, err))
			continue
		}
		if order == nil {
			summary.Skipped++
			continue
		}
		orderCtx := s.logg.WithOrder(ctx, order.OrderNumber)
		outcome, err := s.reconcileOne(orderCtx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", order.OrderNumber, err))
			continue
		}
		switch outcome {
		case OutcomeConfirmed:
			summary.Confirmed++
		case OutcomeDeclined:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	return summary, errs
}

func (s *service) reconcileOne(ctx context.Context, order *models.Order) (Outcome, error) {
	if s.bypass || s.gateway == nil {
		// Nobody returned to confirm the simulated payment.
		return s.expire(ctx, order, "payment session expired")
	}

	txn, err := s.fetchTransaction(ctx, gatewayReference(order, order.OrderNumber))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stale payment check deferred")
		return OutcomeTransient, nil
	}
	switch {
	case txn.Succeeded():
		result, err := s.applyTransaction(ctx, order, txn)
		if err != nil {
			return "", err
		}
		if result.Outcome == OutcomeAlreadyPaid {
			return OutcomeTransient, nil
		}
		return result.Outcome, nil
	case txn.Definitive():
		reason := txn.Message
		if reason == "" {
			reason = fmt.Sprintf("payment %s", txn.Status)
		}
		return s.expire(ctx, order, reason)
	}
	return OutcomeTransient, nil
}

// expire fails a pending order, cancels delivery and releases its coupon.
func (s *service) expire(ctx context.Context, order *models.Order, reason string) (Outcome, error) {
	var won bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		ok, err := repo.MarkFailedIfPending(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order failed")
		}
		if !ok {
			return nil
		}
		won = true

		now := s.now().UTC()
		state := orders.StateOf(enums.PaymentStatusPending, order.DeliveryStatus, order.TrackingNumber)
		transition, err := orders.Apply(state, orders.PaymentFailed())
		if err != nil {
			return err
		}
		fields := map[string]any{}
		if transition.Next.Delivery != order.DeliveryStatus {
			fields["delivery_status"] = transition.Next.Delivery
			if column := orders.StampColumn(transition.Next.Delivery); column != "" {
				fields[column] = now
			}
		}
		if order.CouponID != nil && order.CouponRedeemed {
			if err := s.coupons.Release(ctx, tx, *order.CouponID); err != nil {
				return err
			}
			fields["coupon_redeemed"] = false
		}
		if err := repo.UpdateFields(ctx, order.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if err := repo.AppendTrackingEvents(ctx, order.ID, transition.Entries, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append tracking event")
		}
		reference := order.OrderNumber
		if order.PaymentReference != nil {
			reference = *order.PaymentReference
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				Reference:   reference,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return "", err
	}
	if !won {
		return OutcomeTransient, nil
	}
	s.logg.Info(s.logg.WithField(ctx, "reason", reason), "stale pending payment cancelled")
	return OutcomeDeclined, nil
}

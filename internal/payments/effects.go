package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/inventory"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

// settle flips the order to paid and, only if this call won the flip, runs
// the payment-success effects in the same transaction. It returns false when
// another caller already settled the order.
func (s *service) settle(ctx context.Context, tx *gorm.DB, order *models.Order, reference string, paidAt time.Time) (bool, error) {
	repo := s.orders.WithTx(tx)
	won, err := repo.MarkPaidIfPending(ctx, order.ID, paidAt)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
	}
	if !won {
		return false, nil
	}
	if err := s.applyPaymentEffects(ctx, tx, order, reference, paidAt); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) applyPaymentEffects(ctx context.Context, tx *gorm.DB, order *models.Order, reference string, paidAt time.Time) error {
	repo := s.orders.WithTx(tx)

	state := orders.StateOf(enums.PaymentStatusPending, order.DeliveryStatus, order.TrackingNumber)
	transition, err := orders.Apply(state, orders.PaymentConfirmed())
	if err != nil {
		return err
	}
	fields := map[string]any{}
	if transition.Next.Delivery != order.DeliveryStatus {
		fields["delivery_status"] = transition.Next.Delivery
	}
	if err := repo.AppendTrackingEvents(ctx, order.ID, transition.Entries, paidAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append tracking event")
	}

	stock := payloads.StockCommittedEvent{OrderID: order.ID}
	if !order.StockCommitted {
		stock.Lines = s.commitStock(ctx, tx, order)
		fields["stock_committed"] = true
	}

	if order.CouponID != nil && !order.CouponRedeemed {
		claimed, err := s.coupons.Claim(ctx, tx, *order.CouponID)
		if err != nil {
			return err
		}
		if !claimed {
			s.logg.Warn(ctx, "coupon cap reached before payment; discount already granted on this order")
		}
		fields["coupon_redeemed"] = true
	}

	if err := repo.UpdateFields(ctx, order.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update paid order")
	}

	standing, err := s.loyalty.Record(ctx, tx, order.UserID, order.Total)
	if err != nil {
		return err
	}

	actor := &outbox.ActorRef{UserID: order.UserID}
	events := []outbox.DomainEvent{
		{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        order.UserID,
				Total:         order.Total,
				PaymentMethod: order.PaymentMethod,
				Reference:     reference,
				PaidAt:        paidAt,
			},
		},
		{
			EventType:     enums.EventLoyaltyUpdated,
			AggregateType: enums.AggregateUser,
			AggregateID:   order.UserID,
			Actor:         actor,
			Data: payloads.LoyaltyUpdatedEvent{
				UserID:       order.UserID,
				OrderID:      order.ID,
				TotalSpent:   standing.TotalSpent,
				Tier:         standing.Tier,
				PreviousTier: standing.PreviousTier,
				Changed:      standing.Changed,
			},
		},
	}
	if len(stock.Lines) > 0 {
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventStockCommitted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data:          stock,
		})
	}
	for _, event := range events {
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue "+string(event.EventType))
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"reference":    reference,
		"total":        order.Total,
		"tier":         standing.Tier,
	})
	s.logg.Info(logCtx, "payment confirmed")
	return nil
}

// commitStock decrements stock line by line. Each line runs in its own
// savepoint; a failing line is logged and skipped so the payment still lands.
func (s *service) commitStock(ctx context.Context, tx *gorm.DB, order *models.Order) []payloads.StockLine {
	lines := make([]payloads.StockLine, 0, len(order.Items))
	for _, item := range order.Items {
		line := inventory.Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity}
		var result inventory.CommitResult
		err := tx.Transaction(func(sp *gorm.DB) error {
			r, err := s.inventory.Commit(ctx, sp, line)
			result = r
			return err
		})
		if err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_number": order.OrderNumber,
				"product_id":   item.ProductID.String(),
			})
			s.logg.Error(logCtx, "stock commit failed for paid order line", err)
		} else if !result.Found {
			logCtx := s.logg.WithField(ctx, "product_id", item.ProductID.String())
			s.logg.Warn(logCtx, "stock row missing for paid order line")
		}
		lines = append(lines, payloads.StockLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Found:     err == nil && result.Found,
			Shortfall: result.Shortfall,
		})
	}
	return lines
}

// Package fulfillment moves paid orders through delivery on behalf of admins.
package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
)

const maxBulkOrders = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service applies admin fulfillment changes.
type Service interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateInput) (*models.Order, error)
	BulkUpdate(ctx context.Context, input BulkInput) (int, error)
}

// UpdateInput is a single-order admin change. At least one field must be set.
type UpdateInput struct {
	Status         *enums.DeliveryStatus
	AdminNote      *string
	TrackingNumber *string
	ActorID        uuid.UUID
}

type BulkInput struct {
	OrderIDs  []uuid.UUID
	Status    enums.DeliveryStatus
	AdminNote *string
	ActorID   uuid.UUID
}

type ServiceParams struct {
	TxRunner txRunner
	Orders   orders.Repository
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx     txRunner
	orders orders.Repository
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{tx: params.TxRunner, orders: params.Orders, outbox: params.Outbox, logg: params.Logger, now: now}, nil
}

// UpdateStatus applies the tracking number first and the explicit status
// second, so a tracking number on a processing order ships it before any
// status in the same request is considered.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateInput) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	tracking := ""
	if input.TrackingNumber != nil {
		tracking = strings.TrimSpace(*input.TrackingNumber)
	}
	if input.Status == nil && input.AdminNote == nil && tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status").
			WithDetails(map[string]any{"status": *input.Status})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return s.apply(ctx, tx, order, input.Status, tracking, input.AdminNote, input.ActorID)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return order, nil
}

// BulkUpdate sets one status on many orders. Orders already at the target or
// in a terminal state are skipped and not counted; each order commits on its
// own so one failure does not undo the rest.
func (s *service) BulkUpdate(ctx context.Context, input BulkInput) (int, error) {
	if !input.Status.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}
	ids := dedupe(input.OrderIDs)
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order ids required")
	}
	if len(ids) > maxBulkOrders {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "too many orders").
			WithDetails(map[string]any{"max": maxBulkOrders})
	}

	found, err := s.orders.FindByIDs(ctx, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load orders")
	}

	status := input.Status
	modified := 0
	var errs error
	for _, candidate := range found {
		if candidate.DeliveryStatus == status || candidate.DeliveryStatus.IsTerminal() {
			continue
		}
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.orders.WithTx(tx).FindByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if order == nil || order.DeliveryStatus == status || order.DeliveryStatus.IsTerminal() {
				return nil
			}
			changed = true
			return s.apply(ctx, tx, order, &status, "", input.AdminNote, input.ActorID)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", candidate.OrderNumber, err))
			continue
		}
		if changed {
			modified++
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"requested": len(ids),
		"modified":  modified,
		"status":    status,
	})
	if errs != nil {
		s.logg.Error(logCtx, "bulk status update partially failed", errs)
		return modified, pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "bulk status update partially failed").
			WithDetails(map[string]any{"modified": modified})
	}
	s.logg.Info(logCtx, "bulk status update applied")
	return modified, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, order *models.Order, status *enums.DeliveryStatus, tracking string, note *string, actorID uuid.UUID) error {
	repo := s.orders.WithTx(tx)
	now := s.now().UTC()
	from := order.DeliveryStatus
	state := orders.StateOf(order.PaymentStatus, order.DeliveryStatus, order.TrackingNumber)

	fields := map[string]any{}
	var entries []orders.Entry

	if tracking != "" {
		t, err := orders.Apply(state, orders.TrackingAssigned(tracking))
		if err != nil {
			return err
		}
		fields["tracking_number"] = tracking
		entries = append(entries, t.Entries...)
		state = t.Next
	}
	if status != nil {
		t, err := orders.Apply(state, orders.StatusSet(*status))
		if err != nil {
			return err
		}
		entries = append(entries, t.Entries...)
		state = t.Next
	}
	if state.Delivery != from {
		fields["delivery_status"] = state.Delivery
		if column := orders.StampColumn(state.Delivery); column != "" {
			fields[column] = now
		}
		// Tracking can skip straight past processing to shipped.
		if state.Delivery == enums.DeliveryStatusDelivered && order.ShippedAt == nil {
			fields["shipped_at"] = now
		}
	}
	if note != nil {
		fields["admin_note"] = strings.TrimSpace(*note)
	}

	if err := repo.UpdateFields(ctx, order.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
	}
	if err := repo.AppendTrackingEvents(ctx, order.ID, entries, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append tracking event")
	}
	if len(entries) == 0 {
		return nil
	}

	var trackingNumber *string
	if state.TrackingNumber != "" {
		tn := state.TrackingNumber
		trackingNumber = &tn
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			UserID:         order.UserID,
			From:           from,
			To:             state.Delivery,
			TrackingNumber: trackingNumber,
		},
	}
	if actorID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrder(ctx, order.OrderNumber), map[string]any{
		"from": from,
		"to":   state.Delivery,
	})
	s.logg.Info(logCtx, "order delivery status updated")
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
